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

	"github.com/insaansher/sherpos-terminal/internal/backend"
	"github.com/insaansher/sherpos-terminal/internal/cart"
	"github.com/insaansher/sherpos-terminal/internal/catalog"
	"github.com/insaansher/sherpos-terminal/internal/checkout"
	"github.com/insaansher/sherpos-terminal/internal/connectivity"
	"github.com/insaansher/sherpos-terminal/internal/salequeue"
	"github.com/insaansher/sherpos-terminal/internal/statusapi"
	"github.com/insaansher/sherpos-terminal/internal/syncer"
	"github.com/insaansher/sherpos-terminal/pkg/config"
	"github.com/insaansher/sherpos-terminal/pkg/db"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
	"github.com/insaansher/sherpos-terminal/pkg/metrics"
	"github.com/insaansher/sherpos-terminal/pkg/migrate"
)

const (
	reconnectDrainTimeout = 5 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "terminal"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "terminal",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctx := logg.WithTerminalID(runCtx, cfg.App.TerminalID)

	dbClient, err := db.New(ctx, cfg.Store, logg)
	if err != nil {
		logg.Error(ctx, "failed to open local store", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing local store", err)
		}
	}()

	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to migrate local store", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	terminalMetrics := metrics.NewTerminalMetrics(registry)

	backendClient := backend.NewClient(cfg.Backend, logg)

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Repository: catalog.NewRepository(dbClient.DB()),
		Fetcher:    backendClient,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	queueRepo := salequeue.NewRepository(dbClient.DB())

	monitor, err := connectivity.NewMonitor(connectivity.MonitorParams{
		Prober:   backendClient,
		Interval: cfg.Probe.Interval,
		Timeout:  cfg.Probe.Timeout,
		Logger:   logg,
		Metrics:  terminalMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create connectivity monitor", err)
		os.Exit(1)
	}

	syncEngine, err := syncer.NewEngine(syncer.EngineParams{
		Queue:     queueRepo,
		Submitter: backendClient,
		Logger:    logg,
		Metrics:   terminalMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create sync engine", err)
		os.Exit(1)
	}

	dispatcher, err := checkout.NewDispatcher(checkout.DispatcherParams{
		Backend:   backendClient,
		Queue:     queueRepo,
		Monitor:   monitor,
		Refresher: catalogService,
		Logger:    logg,
		Metrics:   terminalMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout dispatcher", err)
		os.Exit(1)
	}

	posCart := cart.New()
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Cart:       posCart,
		Dispatcher: dispatcher,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	// A crash between claiming a record and writing its outcome leaves it in
	// syncing; sweep those back to failed before any drain can run.
	if recovered, err := syncEngine.Recover(ctx); err != nil {
		logg.Error(ctx, "failed to recover interrupted sync records", err)
		os.Exit(1)
	} else if recovered > 0 {
		logg.Warn(logg.WithField(ctx, "records", recovered), "recovered sales interrupted mid-sync")
	}

	if err := syncer.WireReconnect(ctx, syncer.ReconnectParams{
		Monitor:   monitor,
		Engine:    syncEngine,
		Refresher: catalogService,
		Logger:    logg,
		Timeout:   reconnectDrainTimeout,
	}); err != nil {
		logg.Error(ctx, "failed to wire reconnect sync", err)
		os.Exit(1)
	}

	go monitor.Start(ctx)

	// Best-effort warm-up; an unreachable backend just leaves the previous
	// cache in place.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, cfg.Backend.RequestTimeout*2)
		defer cancel()
		if _, err := catalogService.Refresh(warmCtx); err != nil {
			logg.Warn(warmCtx, "startup cache refresh failed")
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting terminal server")

	server := &http.Server{
		Addr: addr,
		Handler: statusapi.NewRouter(statusapi.RouterParams{
			Logger:   logg,
			Store:    dbClient,
			Monitor:  monitor,
			Cart:     posCart,
			Catalog:  catalogService,
			Checkout: checkoutService,
			Sync:     syncEngine,
			Queue:    queueRepo,
			Registry: registry,
		}),
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(startCtx, "terminal server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(startCtx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(startCtx, "server shutdown failed", err)
		}
	}
}
