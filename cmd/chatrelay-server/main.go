package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chatrelay/internal/api"
	"chatrelay/internal/config"
	"chatrelay/internal/redis"
	"chatrelay/internal/service/ai"
	"chatrelay/internal/service/history"
	"chatrelay/internal/storage"
	"chatrelay/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("CHATRELAY_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger, cleanup := config.SetupLogger(cfg.BasicConfig.LogFile, config.ParseLogLevel(cfg.BasicConfig.LogLevel))
	defer cleanup()
	slog.SetDefault(logger)

	dbType := os.Getenv("CHATRELAY_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		slog.Error("open database", "driver", dbType, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Create necessary tables: chat_sessions, messages.
	if err := storage.Migrate(db, dbType); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(cfg)
		if err != nil {
			// The cache is an optimization; the relay runs without it.
			slog.Warn("redis unavailable, history cache disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	historyService, err := history.NewService(db, cache)
	if err != nil {
		slog.Error("init history service", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	engine, err := ai.NewService(ctx, cfg, cfg.BasicConfig.DefaultProvider)
	cancel()
	if err != nil {
		slog.Error("init completion engine", "provider", cfg.BasicConfig.DefaultProvider, "error", err)
		os.Exit(1)
	}

	workerCfg := worker.DispatcherConfig{
		MinWorkers:        cfg.BasicConfig.MinWorkers,
		MaxWorkers:        cfg.BasicConfig.MaxWorkers,
		QueueSize:         cfg.BasicConfig.QueueSize,
		WorkerIdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	}
	handler := api.NewHandler(historyService, engine, workerCfg, logger)

	router := gin.Default()
	handler.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	slog.Info("starting chatrelay-server", "addr", addr, "driver", dbType, "model", engine.ModelName())

	if err := router.Run(addr); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
