package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg, err := loadServerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	fileConfig, err := loadConfig(cfg.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ConfigPath).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, cfg, fileConfig.Settings())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	server := setupServer(ctx, cfg, services)

	// Background workers stop on ctx and are joined before services close
	workers := map[string]func(context.Context) error{
		"broadcaster": services.Broadcaster.Start,
	}
	// Pick up writes from other processes (postgres backend)
	if services.Listener != nil {
		workers["match state listener"] = services.Listener.Start
	}
	running := startWorkers(ctx, workers)

	// Start HTTP server
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("persist_backend", cfg.PersistBackend).
			Str("allowed_origin", cfg.AllowedOrigin).
			Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown incomplete, closing remaining connections")
		server.Close()
	}

	// Wait for the publisher drain and the listener close
	running.Wait()

	log.Info().Msg("courtside shutdown complete")
}

// startWorkers runs each worker in its own goroutine. The returned WaitGroup
// is done once every worker has returned.
func startWorkers(ctx context.Context, workers map[string]func(context.Context) error) *sync.WaitGroup {
	var wg sync.WaitGroup
	for name, run := range workers {
		name, run := name, run
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				log.Error().Err(err).Str("worker", name).Msg("worker failed")
			}
		}()
	}
	return &wg
}

func setupLogging(level, format string) {
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("unknown LOG_LEVEL, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
