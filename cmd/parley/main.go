package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/antoniostano/parley/internal/config"
	"github.com/antoniostano/parley/internal/dialogue"
	"github.com/antoniostano/parley/internal/httpapi"
	"github.com/antoniostano/parley/internal/journal"
	"github.com/antoniostano/parley/internal/logger"
	"github.com/antoniostano/parley/internal/observability"
	"github.com/antoniostano/parley/internal/session"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logs, err := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		File:   cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logs.Close()
	log := logs.Logger
	if envErr != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	journalStore, err := journal.NewStore(runCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("journal store init failed")
	}
	defer journalStore.Close()

	gateway, err := dialogue.NewGateway(dialogue.Config{
		Mode:      cfg.GatewayMode,
		RemoteURL: cfg.RemoteURL,
		Timeout:   cfg.RemoteTimeout,
	}, metrics, log)
	if err != nil {
		log.Fatal().Err(err).Msg("dialogue gateway init failed")
	}

	controller := session.NewController(gateway, nil, metrics, log, session.Options{BELimit: cfg.BELimit})

	events, unsubscribe := controller.Transcript().Subscribe(1024)
	defer unsubscribe()
	recorder := journal.NewRecorder(journalStore, cfg.JournalRedact, log)
	go recorder.Run(runCtx, events)

	api := httpapi.New(cfg, gateway, controller, journalStore, metrics, log)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Info().
			Str("addr", cfg.BindAddr).
			Str("gateway_mode", cfg.GatewayMode).
			Str("journal_mode", journalStore.Mode()).
			Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}
	runCancel()

	log.Info().Msg("shutdown complete")
}
