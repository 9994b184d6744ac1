package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"analytics-engine/internal/api"
	"analytics-engine/internal/cache"
	"analytics-engine/internal/config"
	"analytics-engine/internal/logger"
	"analytics-engine/internal/report"
	"analytics-engine/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceName = "analytics-engine"

var version = "1.0.0"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("service exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, err := store.Open(startCtx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := cache.NewRedisClient(startCtx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()

	zlog.Info("connected to dependencies",
		zap.String("postgres", cfg.Database.Host),
		zap.String("redis", cfg.Redis.Addr),
		zap.String("timezone", cfg.Location().String()))

	builder := report.NewBuilder(
		store.NewPostgresStore(db, zlog),
		redisClient,
		redisClient,
		report.OptionsFromConfig(cfg),
		zlog,
	)

	server := api.NewServer(builder, redisClient, api.Options{
		DefaultRange: cfg.Analytics.DefaultRange,
		Version:      version,
		Checks: map[string]func(context.Context) error{
			"postgres": db.PingContext,
			"redis":    redisClient.Ping,
		},
	}, zlog)

	return server.Run(ctx, cfg.Server)
}
