package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/masterfile/internal/application"
	"github.com/JonMunkholm/masterfile/internal/config"
	"github.com/JonMunkholm/masterfile/internal/core"
	"github.com/JonMunkholm/masterfile/internal/logging"
	"github.com/JonMunkholm/masterfile/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx := context.Background()
	app, err := application.New(ctx, cfg, application.Options{Registerer: reg})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	for _, def := range core.All() {
		slog.Debug("dataset registered",
			"key", def.Info.Key,
			"file", def.Info.FileName,
			"synthetic_keys", def.SyntheticKeys,
			"key_column", def.KeyColumn)
	}

	server := web.NewServer(app.Service, cfg, reg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests, then let a running publication reach its
		// commit so the day counter matches the report that went out.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if active := app.Service.PublicationsActive(); active > 0 {
			slog.Info("waiting for publication to complete", "active", active)
			if err := app.Service.WaitForPublications(shutdownCtx); err != nil {
				slog.Warn("publication did not complete in time", "error", err)
			} else {
				slog.Info("publication completed")
			}
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		app.Close()
		os.Exit(1)
	}
	<-done
}
