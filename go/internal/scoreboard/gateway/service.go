package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/courtside/go/internal/metrics"
	"github.com/mcdev12/courtside/go/internal/models"
	"github.com/mcdev12/courtside/go/internal/scoreboard"
	"github.com/rs/zerolog/log"
)

// Service is the broadcaster: it owns the subscriber registry, the push
// transports, the HTTP API and the periodic tick.
type Service struct {
	app               *scoreboard.App
	connectionManager *ConnectionManager
	sseHandler        *SSEHandler
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	publisher         Publisher
	metrics           *metrics.Recorder
	clock             clockwork.Clock
	config            Config
}

// Config holds configuration for the broadcaster service
type Config struct {
	ConnectionConfig  ConnectionConfig
	BroadcastInterval time.Duration
	PublicDir         string
	Version           string
}

// DefaultConfig returns default configuration for the broadcaster
func DefaultConfig() Config {
	return Config{
		ConnectionConfig:  DefaultConnectionConfig(),
		BroadcastInterval: time.Second,
		PublicDir:         "public",
		Version:           "1.0.0",
	}
}

// NewService creates a new broadcaster service
func NewService(app *scoreboard.App, publisher Publisher, clock clockwork.Clock, config Config, rec *metrics.Recorder) *Service {
	if publisher == nil {
		publisher = NoOpPublisher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.BroadcastInterval <= 0 {
		config.BroadcastInterval = time.Second
	}

	cm := NewConnectionManager(app, clock, config.ConnectionConfig, rec)
	s := &Service{
		app:               app,
		connectionManager: cm,
		sseHandler:        NewSSEHandler(cm),
		wsHandler:         NewWebSocketHandler(cm),
		publisher:         publisher,
		metrics:           rec,
		clock:             clock,
		config:            config,
	}
	s.stateHandler = NewStateHandler(app, s, config.PublicDir)
	return s
}

// Start runs the broadcast tick until ctx is cancelled. Ticks with no
// subscribers are skipped.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Dur("interval", s.config.BroadcastInterval).Msg("starting broadcaster")

	ticker := s.clock.NewTicker(s.config.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("broadcaster shutting down")
			return s.Stop()
		case <-ticker.Chan():
			s.tick()
		}
	}
}

func (s *Service) tick() {
	if s.connectionManager.Count() == 0 {
		return
	}
	s.connectionManager.Broadcast(TriggerTick)
}

// Stop releases the publisher
func (s *Service) Stop() error {
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("failed to close publisher: %w", err)
	}
	log.Info().Msg("broadcaster stopped")
	return nil
}

// Update merges req into the state, mirrors it and broadcasts it.
//
// A persistence failure still mirrors and broadcasts the new state, then
// returns the ErrPersist error so the caller can report it.
func (s *Service) Update(ctx context.Context, req scoreboard.UpdateRequest) (models.MatchState, error) {
	state, err := s.app.Merge(ctx, req)
	switch {
	case errors.Is(err, scoreboard.ErrInvalidUpdate):
		s.metrics.RecordUpdate(metrics.ResultInvalid)
		return state, err
	case errors.Is(err, scoreboard.ErrPersist):
		log.Error().Err(err).Msg("match state updated in memory but not persisted")
		s.metrics.RecordUpdate(metrics.ResultPersistError)
	case err != nil:
		return state, err
	default:
		s.metrics.RecordUpdate(metrics.ResultOK)
	}

	if perr := s.publisher.Publish(ctx, state); perr != nil {
		log.Warn().Err(perr).Msg("failed to mirror match state")
	}

	delivered := s.connectionManager.Broadcast(TriggerUpdate)
	log.Info().
		Str("court1_status", string(state.Court1.Status)).
		Str("court2_status", string(state.Court2.Status)).
		Int("subscribers", delivered).
		Msg("match state updated")

	return state, err
}

// Reload re-reads the stored state after another process wrote it and pushes
// it to every subscriber.
func (s *Service) Reload(ctx context.Context) error {
	if err := s.app.Restore(ctx); err != nil {
		return err
	}
	s.metrics.RecordExternalReload()
	s.connectionManager.Broadcast(TriggerReload)
	return nil
}

// RegisterRoutes registers the push, state and utility routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/events", s.sseHandler.HandleEvents)
	mux.HandleFunc("/ws", s.wsHandler.HandleConnection)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/info", s.handleInfo)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("broadcaster routes registered")
}

// GetStats returns statistics about the broadcaster service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "courtside"
	stats["version"] = s.config.Version
	stats["status"] = "running"
	return stats
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

func (s *Service) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.GetStats())
}
