package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/flagdeck/flagdeck/internal/api"
	"github.com/flagdeck/flagdeck/internal/config"
	"github.com/flagdeck/flagdeck/internal/logging"
	"github.com/flagdeck/flagdeck/internal/snapshot"
	"github.com/flagdeck/flagdeck/internal/store"
	"github.com/flagdeck/flagdeck/internal/telemetry"
	"github.com/flagdeck/flagdeck/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctxShut)
	}()

	telemetry.Init()

	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.SeedFile != "" {
		if err := store.LoadSeed(ctx, st, cfg.SeedFile, cfg.Env); err != nil {
			return err
		}
		log.Info("seed loaded", "path", cfg.SeedFile)
	}

	cache := snapshot.NewCache(cfg.Env)
	snap, err := cache.Rebuild(ctx, st)
	if err != nil {
		return err
	}
	telemetry.SnapshotFlags.Set(float64(len(snap.Flags)))
	log.Info("snapshot built", "flags", len(snap.Flags), "etag", snap.ETag)

	apiSrv := api.NewServer(api.Options{
		Store:             st,
		Cache:             cache,
		Logger:            log,
		Env:               cfg.Env,
		SDKKey:            cfg.SDKKey,
		SDKKeyHash:        cfg.SDKKeyHash,
		AdminAPIKey:       cfg.AdminAPIKey,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})

	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     otelhttp.NewHandler(apiSrv.Router(), "flagdeck"),
		ReadTimeout: 3 * time.Second,
		// WriteTimeout stays 0: event streams are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		log.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(ctxShut)
	if err := srv.Shutdown(ctxShut); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}
