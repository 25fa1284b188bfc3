package db

import (
	"database/sql"
	"fmt"
	"log"

	"melodex/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they
// don't exist. The composite unique keys below are what the
// insert-or-recover entity resolution relies on: a racing insert for
// the same (user, hash) or (user, file_id) fails with a duplicate-entry
// error instead of creating a second row.
func InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(100) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS music_artists (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL,
			name VARCHAR(255) NOT NULL,
			hash CHAR(32) NOT NULL,
			starred_at TIMESTAMP NULL DEFAULT NULL,
			rating TINYINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			CONSTRAINT uq_artist_user_hash UNIQUE (user_id, hash)
		);`,
		`CREATE TABLE IF NOT EXISTS music_albums (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL,
			name VARCHAR(255) NOT NULL,
			year INT NOT NULL DEFAULT 0,
			album_artist_id BIGINT NOT NULL,
			hash CHAR(32) NOT NULL,
			cover_file_id BIGINT NULL,
			starred_at TIMESTAMP NULL DEFAULT NULL,
			rating TINYINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			CONSTRAINT uq_album_user_hash UNIQUE (user_id, hash),
			INDEX idx_album_artist (album_artist_id)
		);`,
		`CREATE TABLE IF NOT EXISTS music_genres (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL,
			name VARCHAR(255) NOT NULL,
			hash CHAR(32) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			CONSTRAINT uq_genre_user_hash UNIQUE (user_id, hash)
		);`,
		`CREATE TABLE IF NOT EXISTS music_tracks (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id INT NOT NULL,
			file_id BIGINT NOT NULL,
			file_path VARCHAR(767) NOT NULL,
			title VARCHAR(255) NOT NULL,
			track_number INT NOT NULL DEFAULT 0,
			disk_number INT NOT NULL DEFAULT 0,
			length INT NOT NULL DEFAULT 0,
			bitrate INT NOT NULL DEFAULT 0,
			mimetype VARCHAR(100) NOT NULL DEFAULT '',
			artist_id BIGINT NOT NULL,
			album_id BIGINT NOT NULL,
			genre_id BIGINT NULL,
			starred_at TIMESTAMP NULL DEFAULT NULL,
			rating TINYINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			CONSTRAINT uq_track_user_fileid UNIQUE (user_id, file_id),
			INDEX idx_track_artist (artist_id),
			INDEX idx_track_album (album_id),
			INDEX idx_track_genre (genre_id),
			INDEX idx_track_path (file_path(255))
		);`,
	}

	for _, query := range queries {
		if _, err := DB.Exec(query); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	log.Println("Database schema initialized successfully (or already exists).")
	return nil
}
