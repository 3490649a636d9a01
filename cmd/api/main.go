package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hackerfolio/api/internal/app"
	"hackerfolio/api/internal/config"
	"hackerfolio/api/internal/logging"
	"hackerfolio/api/internal/publish"
	"hackerfolio/api/internal/session"
	"hackerfolio/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	dataStore, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store setup failed", zap.Error(err))
	}
	defer closeStore()

	var sessions app.SessionStore = dataStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Info("using redis for refresh sessions")
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		logger.Info("using the main store for refresh sessions", zap.String("driver", cfg.StoreDriver))
	}

	var sink publish.Sink
	if strings.TrimSpace(cfg.PublishEndpoint) != "" {
		minioSink, err := publish.NewMinioSink(ctx, publish.MinioConfig{
			Endpoint:  cfg.PublishEndpoint,
			Bucket:    cfg.PublishBucket,
			AccessKey: cfg.PublishAccessKey,
			SecretKey: cfg.PublishSecretKey,
			UseSSL:    cfg.PublishUseSSL,
		})
		if err != nil {
			logger.Fatal("publish bucket setup failed", zap.Error(err))
		}
		sink = minioSink
	} else {
		logger.Warn("HACKERFOLIO_PUBLISH_ENDPOINT not set; published snapshots are kept in memory")
		sink = publish.NewMemorySink()
	}

	service := app.New(cfg, dataStore, sessions, sink, logger)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("hackerfolio API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// storeBackend is what the service needs from the main store, including the
// session methods used when Redis is not configured.
type storeBackend interface {
	app.DataStore
	app.SessionStore
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storeBackend, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using the in-memory store; data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	case config.StoreDriverPostgres:
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir, logger); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrations failed: %w", err)
		}
		return store.NewPostgresStore(db), func() { _ = db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
