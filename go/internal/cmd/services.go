package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/mcdev12/courtside/go/internal/dbconfig"
	"github.com/mcdev12/courtside/go/internal/metrics"
	"github.com/mcdev12/courtside/go/internal/scoreboard"
	"github.com/mcdev12/courtside/go/internal/scoreboard/gateway"
	"github.com/mcdev12/courtside/go/internal/scoreboard/postgres"
	"github.com/rs/zerolog/log"
)

type Services struct {
	App         *scoreboard.App
	Broadcaster *gateway.Service
	Metrics     *metrics.Recorder
	// Listener is set for the postgres backend only.
	Listener *postgres.Listener
	closers  []func() error
}

// Close releases the database handle and other resources in reverse order.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close resource")
		}
	}
}

func setupServices(ctx context.Context, cfg ServerConfig, settings scoreboard.Settings) (*Services, error) {
	// Wire up dependency injection chain
	// Repository → App → Broadcaster (registry, transports, handlers)
	clock := clockwork.NewRealClock()
	rec := metrics.NewRecorder()
	services := &Services{Metrics: rec}

	var pgRepo *postgres.Repository
	var databaseURL string
	var repo scoreboard.Repository
	switch cfg.PersistBackend {
	case BackendPostgres:
		database, dsn, err := setupDatabase(ctx)
		if err != nil {
			return nil, err
		}
		services.closers = append(services.closers, database.Close)

		pgRepo = postgres.NewRepository(database, clock)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			services.Close()
			return nil, err
		}
		repo = pgRepo

		databaseURL = dsn
	case BackendFile:
		repo = scoreboard.NewFileRepository(cfg.StateFile)
		log.Info().Str("path", cfg.StateFile).Msg("persisting match state to file")
	default:
		repo = scoreboard.NoopRepository{}
		log.Warn().Msg("match state persistence disabled")
	}

	app := scoreboard.NewApp(repo, clock, settings)
	if err := app.Restore(ctx); err != nil {
		services.Close()
		return nil, err
	}
	services.App = app

	var publisher gateway.Publisher = gateway.NoOpPublisher{}
	if cfg.NATSURL != "" {
		natsCfg := gateway.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Subject = cfg.NATSSubject
		natsPublisher, err := gateway.NewNATSPublisher(natsCfg)
		if err != nil {
			services.Close()
			return nil, err
		}
		publisher = natsPublisher
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.ConnectionConfig.AllowedOrigin = cfg.AllowedOrigin
	gatewayConfig.BroadcastInterval = cfg.BroadcastInterval
	gatewayConfig.PublicDir = cfg.PublicDir
	services.Broadcaster = gateway.NewService(app, publisher, clock, gatewayConfig, rec)

	if pgRepo != nil {
		lcfg := postgres.DefaultListenerConfig()
		lcfg.DatabaseURL = databaseURL
		listener, err := postgres.NewListener(lcfg, pgRepo, services.Broadcaster.Reload)
		if err != nil {
			log.Error().Err(err).Msg("failed to listen for match state changes, external writes will not be picked up")
		} else {
			services.Listener = listener
		}
	}

	return services, nil
}

func setupDatabase(ctx context.Context) (*sql.DB, string, error) {
	dbCfg := dbconfig.NewConfigFromEnv()

	database, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, "", fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("database", dbCfg.Redacted()).Msg("connected to database")
	return database, dbCfg.DSN(), nil
}
