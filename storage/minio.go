// Package storage keeps album cover blobs in MinIO, one object per
// (owner, album).
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"melodex/config"
	"melodex/logger"
)

// CoverStore persists album cover images extracted during scans.
type CoverStore interface {
	Put(ctx context.Context, userID, albumID int64, data []byte, contentType string) error
	Get(ctx context.Context, userID, albumID int64) ([]byte, string, error)
	Remove(ctx context.Context, userID, albumID int64) error
	RemoveAll(ctx context.Context, userID int64) error
}

// minioCoverStore implements CoverStore on a MinIO bucket.
type minioCoverStore struct {
	client *minio.Client
	bucket string
}

// NewMinioCoverStore connects to MinIO and ensures the cover bucket
// exists.
func NewMinioCoverStore(ctx context.Context, cfg *config.Config) (CoverStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("created cover bucket", logger.String("bucket", cfg.MinioBucket))
	}

	return &minioCoverStore{client: client, bucket: cfg.MinioBucket}, nil
}

func coverObjectName(userID, albumID int64) string {
	return fmt.Sprintf("covers/%d/%d", userID, albumID)
}

func (s *minioCoverStore) Put(ctx context.Context, userID, albumID int64, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, coverObjectName(userID, albumID),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to store cover for album %d: %w", albumID, err)
	}
	return nil
}

func (s *minioCoverStore) Get(ctx context.Context, userID, albumID int64) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, coverObjectName(userID, albumID), minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get cover for album %d: %w", albumID, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read cover for album %d: %w", albumID, err)
	}
	stat, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("failed to stat cover for album %d: %w", albumID, err)
	}
	return data, stat.ContentType, nil
}

func (s *minioCoverStore) Remove(ctx context.Context, userID, albumID int64) error {
	err := s.client.RemoveObject(ctx, s.bucket, coverObjectName(userID, albumID), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to remove cover for album %d: %w", albumID, err)
	}
	return nil
}

func (s *minioCoverStore) RemoveAll(ctx context.Context, userID int64) error {
	prefix := fmt.Sprintf("covers/%d/", userID)
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("failed to list covers for user ID %d: %w", userID, obj.Err)
		}
		if !strings.HasPrefix(obj.Key, prefix) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove cover object %s: %w", obj.Key, err)
		}
	}
	return nil
}
