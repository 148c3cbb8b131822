package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Dev-Codn/notificationfeb/internal/backend"
	"github.com/Dev-Codn/notificationfeb/internal/config"
	"github.com/Dev-Codn/notificationfeb/internal/logger"
	"github.com/Dev-Codn/notificationfeb/internal/metrics"
	"github.com/Dev-Codn/notificationfeb/internal/platform"
	"github.com/Dev-Codn/notificationfeb/internal/port"
	"github.com/Dev-Codn/notificationfeb/internal/worker"
)

// Version is the worker build version, reported over the control channel.
// Overridden at build time via -ldflags.
var Version = "dev"

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var msgPort port.Port
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second))
		if err != nil {
			log.Error("failed to connect to NATS, running without a message port",
				slog.String("url", cfg.NatsURL),
				slog.String("error", err.Error()))
		} else {
			defer nc.Drain()
			msgPort = port.NewWorkerPort(nc, log)
		}
	}
	if msgPort == nil {
		msgPort, _ = port.Pair()
	}

	be := backend.NewClient(cfg.APIBaseURL, time.Duration(cfg.APITimeoutSeconds)*time.Second, log)

	w := worker.New(worker.Config{
		Version:      Version,
		CacheVersion: cfg.CacheVersion,
		UserID:       os.Getenv("NOTIFY_USER_ID"),
		AssetBaseURL: os.Getenv("NOTIFY_ASSET_BASE_URL"),
		AssetManifest: []string{
			"/",
			"/index.html",
			"/manifest.json",
			"/icons/icon-192.png",
			"/icons/icon-512.png",
			"/icons/badge-72.png",
		},
		ShellPath:       "/index.html",
		APIPrefix:       "/api",
		ResyncCronSpec:  cfg.ResyncCronSpec,
		ResyncRenderMax: cfg.ResyncRenderMax,
		PendingLimit:    cfg.PendingPollLimit,
	}, be, platform.Capabilities{}, msgPort, metrics.New(), log)

	if err := w.Run(ctx); err != nil {
		log.LogError(ctx, err, "worker failed to start")
		os.Exit(1)
	}
	defer w.Close()

	log.Info("background worker started", slog.String("version", Version))
	<-ctx.Done()
	log.Info("shutting down")
}
