package cmd

import (
	"context"
	"log"

	"melodex/cache"
	"melodex/config"
	"melodex/core/filetree"
	"melodex/core/maintenance"
	"melodex/core/metadata"
	"melodex/core/scanner"
	"melodex/db"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
	"melodex/storage"
)

// cliApp carries the dependencies the maintenance subcommands share.
type cliApp struct {
	cfg     *config.Config
	users   repository.UserRepository
	scanner *scanner.Scanner
	maint   *maintenance.Maintenance
	close   func()
}

// bootstrap wires the storage stack the same way the server does,
// minus the HTTP layer and the watcher.
func bootstrap() *cliApp {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
	})

	if err := db.ConnectDB(cfg); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.InitDB(); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	if err := db.ConnectGormDB(cfg); err != nil {
		log.Fatalf("failed to connect gorm: %v", err)
	}
	if err := db.AutoMigrateModels(&model.Playlist{}, &model.ScanJob{}); err != nil {
		log.Fatalf("failed to migrate models: %v", err)
	}

	var c cache.Cache
	if cfg.RedisHost != "" {
		if err := db.ConnectRedis(cfg); err != nil {
			log.Printf("redis unavailable, using in-memory cache: %v", err)
		}
	}
	if db.RedisClient != nil {
		c = cache.NewRedisCache(db.RedisClient)
	} else {
		c = cache.NewMemoryCache()
	}

	var covers storage.CoverStore
	if cfg.MinioEndpoint != "" {
		var err error
		covers, err = storage.NewMinioCoverStore(context.Background(), cfg)
		if err != nil {
			log.Fatalf("failed to initialize cover store: %v", err)
		}
	}

	userRepo := repository.NewMySQLUserRepository(db.DB)
	artistRepo := repository.NewMySQLArtistRepository(db.DB)
	albumRepo := repository.NewMySQLAlbumRepository(db.DB)
	genreRepo := repository.NewMySQLGenreRepository(db.DB)
	trackRepo := repository.NewMySQLTrackRepository(db.DB)
	playlistRepo := repository.NewGormPlaylistRepository(db.GormDB)

	tree := filetree.NewLocalTree(cfg.LibraryRoot)
	resolver := scanner.NewEntityResolver(artistRepo, albumRepo, genreRepo)
	scan := scanner.NewScanner(tree, metadata.NewTagExtractor(), resolver,
		trackRepo, albumRepo, artistRepo, genreRepo, playlistRepo, covers, c)
	maint := maintenance.NewMaintenance(db.DB, trackRepo, albumRepo, artistRepo,
		genreRepo, playlistRepo, covers, c)

	return &cliApp{
		cfg:     cfg,
		users:   userRepo,
		scanner: scan,
		maint:   maint,
		close: func() {
			db.CloseGormDB()
			if db.RedisClient != nil {
				db.CloseRedis()
			}
			db.DB.Close()
		},
	}
}
