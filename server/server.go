package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"melodex/cache"
	"melodex/config"
	"melodex/core/filetree"
	"melodex/core/hooks"
	"melodex/core/maintenance"
	"melodex/core/metadata"
	"melodex/core/scanner"
	"melodex/db"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
	"melodex/storage"
)

// Start wires the application and runs the HTTP server until SIGINT
// or SIGTERM. All dependencies are constructed here, once, and passed
// down explicitly.
func Start() {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
	})

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()
	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database", logger.ErrorField(err))
	}
	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect gorm", logger.ErrorField(err))
	}
	defer db.CloseGormDB()
	if err := db.AutoMigrateModels(&model.Playlist{}, &model.ScanJob{}); err != nil {
		logger.Fatal("failed to migrate models", logger.ErrorField(err))
	}

	var c cache.Cache
	if cfg.RedisHost != "" {
		if err := db.ConnectRedis(cfg); err != nil {
			logger.Warn("redis unavailable, using in-memory cache", logger.ErrorField(err))
		}
		defer db.CloseRedis()
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
			logger.Fatal("failed to initialize cover store", logger.ErrorField(err))
		}
	}

	userRepo := repository.NewMySQLUserRepository(db.DB)
	artistRepo := repository.NewMySQLArtistRepository(db.DB)
	albumRepo := repository.NewMySQLAlbumRepository(db.DB)
	genreRepo := repository.NewMySQLGenreRepository(db.DB)
	trackRepo := repository.NewMySQLTrackRepository(db.DB)
	playlistRepo := repository.NewGormPlaylistRepository(db.GormDB)
	scanJobRepo := repository.NewGormScanJobRepository(db.GormDB)

	tree := filetree.NewLocalTree(cfg.LibraryRoot)
	resolver := scanner.NewEntityResolver(artistRepo, albumRepo, genreRepo)
	scan := scanner.NewScanner(tree, metadata.NewTagExtractor(), resolver,
		trackRepo, albumRepo, artistRepo, genreRepo, playlistRepo, covers, c)
	maint := maintenance.NewMaintenance(db.DB, trackRepo, albumRepo, artistRepo,
		genreRepo, playlistRepo, covers, c)
	hookAdapter := hooks.NewHookAdapter(scan, maint)

	apiHandler := NewAPIHandler(cfg, userRepo, artistRepo, albumRepo, genreRepo,
		trackRepo, playlistRepo, scanJobRepo, scan, maint, hookAdapter, covers, c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := hooks.NewWatcher(hookAdapter, tree, userRepo, cfg.LibraryRoot, cfg.WatcherDebounce)
	go func() {
		if err := watcher.Watch(ctx); err != nil && err != context.Canceled {
			logger.Error("watcher stopped", logger.ErrorField(err))
		}
	}()
	go maint.RunPeriodic(ctx, cfg.CleanupInterval)

	router := newRouter(apiHandler)
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", logger.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", logger.ErrorField(err))
	}
}

func newRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// Auth
	router.HandleFunc("/api/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)

	// Library
	router.HandleFunc("/api/collection", h.AuthMiddleware(h.GetCollectionHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/artists", h.AuthMiddleware(h.GetArtistsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/albums", h.AuthMiddleware(h.GetAlbumsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/genres", h.AuthMiddleware(h.GetGenresHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks", h.AuthMiddleware(h.GetTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/albums/{id}/cover", h.AuthMiddleware(h.GetCoverHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/{kind}/{id}/star", h.AuthMiddleware(h.StarHandler(true))).Methods(http.MethodPost)
	router.HandleFunc("/api/{kind}/{id}/unstar", h.AuthMiddleware(h.StarHandler(false))).Methods(http.MethodPost)
	router.HandleFunc("/api/{kind}/{id}/rating", h.AuthMiddleware(h.RatingHandler)).Methods(http.MethodPut)

	// Playlists
	router.HandleFunc("/api/playlists", h.AuthMiddleware(h.GetPlaylistsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists", h.AuthMiddleware(h.CreatePlaylistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{id}", h.AuthMiddleware(h.GetPlaylistHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{id}", h.AuthMiddleware(h.UpdatePlaylistHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/playlists/{id}", h.AuthMiddleware(h.DeletePlaylistHandler)).Methods(http.MethodDelete)

	// Scanning and maintenance
	router.HandleFunc("/api/scan", h.AuthMiddleware(h.TriggerScanHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/scan/status", h.AuthMiddleware(h.ScanStatusHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/scan/progress", h.AuthMiddleware(h.ScanProgressWSHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/maintenance/cleanup", h.AuthMiddleware(h.CleanupHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/maintenance/reset", h.AuthMiddleware(h.ResetHandler)).Methods(http.MethodPost)

	// Webhooks from the sharing subsystem
	router.HandleFunc("/api/webhooks/share", h.ShareWebhookHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/webhooks/unshare", h.UnshareWebhookHandler).Methods(http.MethodPost)

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
