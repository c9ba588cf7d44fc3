// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/wordrope/internal/cache"
	"github.com/jason-s-yu/wordrope/internal/config"
	"github.com/jason-s-yu/wordrope/internal/handlers"
	"github.com/jason-s-yu/wordrope/internal/lexicon"
	"github.com/jason-s-yu/wordrope/internal/metrics"
	"github.com/jason-s-yu/wordrope/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("invalid LOG_LEVEL %q: %v", cfg.LogLevel, err)
	}
	logger.SetLevel(level)

	words, err := lexicon.Load(cfg.DictionaryPath)
	if err != nil {
		logger.Fatalf("failed to load dictionary from %s: %v", cfg.DictionaryPath, err)
	}
	logger.Infof("Loaded %d words from %s", words.Len(), cfg.DictionaryPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gs := handlers.NewGameServer(words, logger, handlers.Options{
		OutboundQueueSize: cfg.OutboundQueueSize,
		HubBacklog:        cfg.HubBacklog,
		WriteTimeout:      cfg.WriteTimeout,
		PingInterval:      cfg.PingInterval,
		WaitingTimeout:    cfg.WaitingTimeout,
	})

	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		defer rdb.Close()
		gs.Results = cache.NewResultPublisher(rdb, cfg.Historian.QueueName)
		logger.Infof("Archiving finished games to Redis list %s", cfg.Historian.QueueName)
	}

	logged := middleware.LogMiddleware(logger)
	mux := http.NewServeMux()
	mux.Handle("/ws", logged(handlers.GameWSHandler(logger, gs)))
	mux.Handle("/healthz", handlers.HealthHandler(gs))
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return gs.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Hijacked WebSocket connections are not tracked by Shutdown; closing the
		// lobby feed and the process exit take care of them.
		err := srv.Shutdown(shutdownCtx)
		gs.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("server stopped")
}
