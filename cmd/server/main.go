package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/taskflow-assetproxy/configs"
	"github.com/avatarctic/taskflow-assetproxy/internal/application/services"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
	"github.com/avatarctic/taskflow-assetproxy/internal/core/ports"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/db"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/health"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/httpserver"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/httpserver/helpers"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/memory"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/network"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/objectstore"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/redis"
	"github.com/avatarctic/taskflow-assetproxy/internal/infrastructure/repositories"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.WithFields(logrus.Fields{
		"origin":   cfg.Origin.URL.String(),
		"backend":  cfg.Cache.Backend,
		"strategy": cfg.Cache.Strategy,
	}).Info("Starting TaskFlow asset cache proxy...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, checkers, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize cache storage:", err)
	}
	defer closeStorage()

	cacheName, err := asset.NewCacheName(cfg.Cache.NamePrefix, cfg.Cache.Version)
	if err != nil {
		logger.Fatal("Invalid cache name:", err)
	}

	fetcher := network.NewFetcher(&network.Config{Origin: cfg.Origin.URL, Timeout: cfg.Origin.Timeout}, logger)

	proxyConfig := &services.CacheProxyConfig{
		CacheName:          cacheName,
		Origin:             cfg.Origin.URL,
		Manifest:           cfg.Cache.Manifest,
		Fallbacks:          cfg.Cache.Fallbacks,
		APIMarker:          cfg.Cache.APIMarker,
		Strategy:           asset.Strategy(cfg.Cache.Strategy),
		MaxEntryBytes:      cfg.Cache.MaxEntryBytes,
		InstallConcurrency: cfg.Cache.InstallConcurrency,
	}
	registration := services.NewRegistrationService(
		services.NewWorkerFactory(proxyConfig, storage, fetcher, logger),
		storage,
		fetcher,
		&services.RegistrationConfig{RetryInterval: cfg.Cache.InstallRetry, MaxAttempts: cfg.Cache.InstallMaxAttempts},
		logger,
	)

	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
	}
	targets, err := helpers.NewTargetPolicy(cfg.Origin.URL, cfg.Cache.Manifest)
	if err != nil {
		logger.Fatal("Invalid cache manifest:", err)
	}
	deps := httpserver.ServerDeps{
		Registration:   registration,
		Origin:         cfg.Origin.URL,
		HealthCheckers: checkers,
		Targets:        targets,
	}
	server := httpserver.NewServer(serverConfig, cfg.Admin.JWTSecret, logger, deps)

	// Requests pass through to the origin until the first worker is active.
	go func() {
		if err := registration.Register(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("Worker registration failed")
		}
	}()

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

// openStorage builds the configured cache backend with its health checkers and a close func.
func openStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (ports.CacheStorage, []ports.HealthChecker, func(), error) {
	noop := func() {}

	switch cfg.Cache.Backend {
	case config.BackendMemory:
		return memory.NewCacheStorage(), nil, noop, nil

	case config.BackendRedis:
		client, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("Connected to Redis successfully")
		closeFn := func() { _ = client.Close() }
		return redis.NewCacheStorage(client, cfg.Redis.KeyPrefix),
			[]ports.HealthChecker{health.NewRedisHealthChecker(client)}, closeFn, nil

	case config.BackendPostgres, config.BackendSQLite:
		var (
			database *db.Database
			err      error
		)
		if cfg.Cache.Backend == config.BackendPostgres {
			database, err = db.NewDatabaseWithConfig(&cfg.Database)
		} else {
			database, err = db.NewSQLite(&cfg.SQLite)
		}
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect database: %w", err)
		}
		logger.WithField("driver", database.Driver).Info("Connected to database successfully")
		if err := database.Migrate(); err != nil {
			_ = database.Close()
			return nil, nil, noop, fmt.Errorf("run migrations: %w", err)
		}
		closeFn := func() { _ = database.Close() }
		return repositories.NewCacheStorageRepository(database, logger),
			[]ports.HealthChecker{health.NewDBHealthChecker(database)}, closeFn, nil

	case config.BackendS3:
		client, err := objectstore.NewClient(&cfg.S3)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("create s3 client: %w", err)
		}
		storage := objectstore.NewCacheStorage(client, cfg.S3.Bucket, cfg.S3.Prefix, logger)
		if err := storage.EnsureBucket(ctx, cfg.S3.Region); err != nil {
			return nil, nil, noop, err
		}
		logger.WithField("bucket", cfg.S3.Bucket).Info("Object store ready")
		return storage, []ports.HealthChecker{health.NewPingHealthChecker("s3", storage.Ping)}, noop, nil
	}
	return nil, nil, noop, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}
