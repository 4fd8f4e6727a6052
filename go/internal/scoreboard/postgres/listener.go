package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ListenerConfig configures the LISTEN connection used to pick up writes
// from other processes.
type ListenerConfig struct {
	DatabaseURL  string
	PingInterval time.Duration
	MinReconnect time.Duration
	MaxReconnect time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		PingInterval: 90 * time.Second,
		MinReconnect: 10 * time.Second,
		MaxReconnect: time.Minute,
	}
}

// Listener calls onChange whenever another process rewrites the state row.
// Notifications carrying this process's instance id are ignored.
type Listener struct {
	listener *pq.Listener
	cfg      ListenerConfig
	selfID   string
	onChange func(ctx context.Context) error
}

// NewListener subscribes to NotifyChannel.
func NewListener(cfg ListenerConfig, repo *Repository, onChange func(ctx context.Context) error) (*Listener, error) {
	l := pq.NewListener(cfg.DatabaseURL, cfg.MinReconnect, cfg.MaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Error().Err(err).Msg("match state listener event")
		}
	})
	if err := l.Listen(NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", NotifyChannel).Msg("listening for match state notifications")

	return &Listener{
		listener: l,
		cfg:      cfg,
		selfID:   repo.InstanceID().String(),
		onChange: onChange,
	}, nil
}

// Start blocks until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("match state listener shutting down")
			return l.listener.Close()
		case note := <-l.listener.Notify:
			l.handle(ctx, note)
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping match state listener")
			}
		}
	}
}

// handle decides whether a notification needs a reload and returns true when
// it triggered one. A nil notification means the connection was re-established
// and a write may have been missed.
func (l *Listener) handle(ctx context.Context, note *pq.Notification) bool {
	if note == nil {
		l.reload(ctx, "reconnect")
		return true
	}
	if note.Extra == l.selfID {
		return false
	}
	l.reload(ctx, note.Extra)
	return true
}

func (l *Listener) reload(ctx context.Context, source string) {
	if err := l.onChange(ctx); err != nil {
		log.Error().Err(err).Str("source", source).Msg("failed to reload match state")
		return
	}
	log.Info().Str("source", source).Msg("reloaded match state after external write")
}
