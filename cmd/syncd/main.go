package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quotedesk/fieldsync/api/routes"
	"github.com/quotedesk/fieldsync/internal/connectivity"
	"github.com/quotedesk/fieldsync/internal/quotes"
	"github.com/quotedesk/fieldsync/internal/storage"
	"github.com/quotedesk/fieldsync/internal/syncengine"
	"github.com/quotedesk/fieldsync/internal/transport"
	"github.com/quotedesk/fieldsync/pkg/config"
	"github.com/quotedesk/fieldsync/pkg/db"
	"github.com/quotedesk/fieldsync/pkg/logger"
	"github.com/quotedesk/fieldsync/pkg/metrics"
	"github.com/quotedesk/fieldsync/pkg/migrate"
	"github.com/quotedesk/fieldsync/pkg/session"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "syncd"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "syncd",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap local store", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing local store", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	store := storage.NewStore(dbClient.DB())
	repo := quotes.NewRepository(store, logg)
	drafts := quotes.NewAutosave(store, logg)
	sessions := session.NewProvider()

	monitor, err := connectivity.NewMonitor(connectivity.Params{
		Logger:      logg,
		Config:      cfg.Probe,
		FallbackURL: cfg.Remote.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create connectivity monitor", err)
		os.Exit(1)
	}

	submitter, err := transport.NewSubmitter(transport.Params{
		Logger:  logg,
		Config:  cfg.Remote,
		Metrics: syncMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create submitter", err)
		os.Exit(1)
	}

	engine, err := syncengine.NewEngine(syncengine.Params{
		Logger:        logg,
		Repository:    repo,
		Drafts:        drafts,
		Submitter:     submitter,
		Monitor:       monitor,
		Sessions:      sessions,
		Metrics:       syncMetrics,
		FlushInterval: cfg.Sync.FlushInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sync engine", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting sync daemon")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Repo:     repo,
			Drafts:   drafts,
			Engine:   engine,
			Sessions: sessions,
			Registry: registry,
		}),
	}

	monitorDone := make(chan error, 1)
	go func() { monitorDone <- monitor.Run(ctx) }()

	engineDone := make(chan error, 1)
	go func() { engineDone <- engine.Run(ctx) }()

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "inspector server stopped unexpectedly", err)
		}
		stop()
	case err := <-engineDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "sync engine stopped unexpectedly", err)
		}
		stop()
	case err := <-monitorDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "connectivity monitor stopped unexpectedly", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "error shutting down inspector server", err)
	}

	logg.Info(ctx, "sync daemon shutting down gracefully")
}
