package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/config"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/api"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/db"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/logging"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/notification"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/occupancy"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/recorder"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/roster"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/stats"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Push is optional; without VAPID keys sessions are stored but nobody is notified.
	var webpushOptions *webpush.Options
	var dispatcher recorder.Dispatcher
	var workerPool *notification.WorkerPool
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workerPool = notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, gormDB, webpushOptions, logger)
		workerPool.Start(ctx)
		dispatcher = workerPool
	} else {
		logger.Warn("VAPID keys not configured, push notifications disabled")
	}

	tracker := occupancy.NewTracker(recorder.New(appStore, dispatcher, logger), cfg.Tracker.MinDuration, logger)
	gate := occupancy.NewGate(cfg.Tracker.TrackBots, cfg.Tracker.IgnoredMemberIDs)

	rosterCtx, stopRoster := context.WithCancel(ctx)
	defer stopRoster()
	var rosterDone <-chan struct{}
	if cfg.Roster.Enabled {
		rosterSvc := roster.NewService(&cfg.Roster, tracker, gate, logger)
		if _, err := rosterSvc.Reconcile(rosterCtx); err != nil {
			logger.Warn("initial roster sync failed, starting with no open sessions", zap.Error(err))
		}
		rosterDone = rosterSvc.Start(rosterCtx)
	}

	handler := api.NewHandler(api.Deps{
		Store:       appStore,
		Tracker:     tracker,
		Gate:        gate,
		Stats:       stats.NewService(appStore, cfg.Tracker.Location),
		Webpush:     webpushOptions,
		IngestToken: cfg.Server.IngestToken,
		Logger:      logger,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler, cfg.Server),
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}

	// No more events can arrive once the roster has stopped; close what is
	// still open so it is counted.
	stopRoster()
	if rosterDone != nil {
		<-rosterDone
	}
	flushed := tracker.FlushAll(context.Background(), time.Now())
	logger.Info("open sessions flushed", zap.Int("count", flushed))

	if workerPool != nil {
		if err := workerPool.Drain(shutdownCtx); err != nil {
			logger.Warn("notification queue not drained, remaining pushes dropped", zap.Error(err))
		}
	}
	cancel()
	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("server gracefully stopped")
}
