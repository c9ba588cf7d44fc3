// cmd/historian/main.go is the result historian: it pops finished game records from
// the Redis queue the game server pushes to and persists them to PostgreSQL.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/wordrope/internal/cache"
	"github.com/jason-s-yu/wordrope/internal/config"
	"github.com/jason-s-yu/wordrope/internal/database"
	"github.com/jason-s-yu/wordrope/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := cfg.Redis.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb, err := cache.Connect(ctx, addr, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()
	logger.Infof("Connected to database at %s:%s/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)

	store := database.NewResultStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatalf("failed to create schema: %v", err)
	}

	svc := historian.NewService(rdb, store, historian.Options{
		QueueName:  cfg.Historian.QueueName,
		BatchSize:  cfg.Historian.BatchSize,
		FlushDelay: cfg.Historian.FlushDelay(),
	}, logger)

	if err := svc.Run(ctx); err != nil {
		logger.Fatalf("historian exited: %v", err)
	}
}
