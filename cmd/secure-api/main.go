package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aman-churiwal/secure-api/internal/config"
	"github.com/aman-churiwal/secure-api/internal/logger"
	"github.com/aman-churiwal/secure-api/internal/server"
	"github.com/aman-churiwal/secure-api/internal/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load env if it exists
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	memory := storage.NewMemoryStore()
	memory.StartJanitor(time.Duration(cfg.Store.JanitorIntervalSec) * time.Second)
	defer memory.Close()

	deps := server.Deps{Config: cfg, Logger: log}

	// A nil primary keeps the fallback store permanently per process
	var primary storage.Store
	if cfg.Redis.Enabled {
		redis, err := storage.NewRedis(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable at startup, rate limits are per process until it recovers")
			redis = storage.NewRedisLazy(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		} else {
			log.Info("Connected to Redis successfully")
		}
		defer redis.Close()

		primary = storage.NewRedisStore(redis)
		deps.Redis = redis
	}

	deps.Store = storage.NewFallbackStore(primary, memory, storage.FallbackOptions{
		Timeout:     time.Duration(cfg.Store.TimeoutMs) * time.Millisecond,
		MaxFailures: cfg.Store.MaxFailures,
		OpenTimeout: time.Duration(cfg.Store.OpenTimeoutSec) * time.Second,
		Logger:      log,
	})

	if cfg.Database.URL != "" {
		postgres, err := storage.NewPostgres(cfg.Database.URL, cfg.Database.Debug)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
		defer postgres.Close()

		if err := postgres.AutoMigrate(); err != nil {
			log.WithError(err).Fatal("Failed to migrate database")
		}
		log.Info("Connected to database successfully")
		deps.Postgres = postgres
	}

	srv, err := server.New(deps)
	if err != nil {
		log.WithError(err).Fatal("Failed to create server")
	}

	go func() {
		if err := srv.Run(":" + cfg.Server.Port); err != nil {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}
