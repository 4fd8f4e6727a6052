package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/courtside/go/internal/metrics"
	"github.com/mcdev12/courtside/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Transport names the push channel a subscriber is attached through
type Transport string

const (
	TransportSSE       Transport = "sse"
	TransportWebSocket Transport = "websocket"
)

// Broadcast triggers, used as the metrics label.
const (
	TriggerTick   = "tick"
	TriggerUpdate = "update"
	TriggerReload = "reload"
)

// StateSource provides the decayed snapshot that gets pushed to displays
type StateSource interface {
	Snapshot() models.MatchState
}

// Subscriber is one connected display. Send carries encoded MatchState
// payloads and is closed exactly once, when the subscriber is unregistered.
type Subscriber struct {
	ID          uuid.UUID
	Transport   Transport
	Send        chan []byte
	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for subscriber connections
type ConnectionConfig struct {
	SendBufferSize  int
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	AllowedOrigin   string
}

// DefaultConnectionConfig returns default subscriber configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		SendBufferSize:  16,
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		AllowedOrigin:   "*",
	}
}

// ConnectionManager is the subscriber registry and the broadcast dispatcher.
//
// dispatchMu spans snapshot+fan-out so every subscriber sees snapshots in the
// order they were taken, and so a registering subscriber's initial snapshot
// is queued before any broadcast can reach it.
type ConnectionManager struct {
	subscribers map[uuid.UUID]*Subscriber
	mu          sync.RWMutex
	dispatchMu  sync.Mutex

	source  StateSource
	clock   clockwork.Clock
	config  ConnectionConfig
	metrics *metrics.Recorder
}

// NewConnectionManager creates a new subscriber registry
func NewConnectionManager(source StateSource, clock clockwork.Clock, config ConnectionConfig, rec *metrics.Recorder) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}

	return &ConnectionManager{
		subscribers: make(map[uuid.UUID]*Subscriber),
		source:      source,
		clock:       clock,
		config:      config,
		metrics:     rec,
	}
}

// Register adds a subscriber whose Send channel already holds the
// connect-time snapshot.
func (cm *ConnectionManager) Register(transport Transport) (*Subscriber, error) {
	cm.dispatchMu.Lock()
	defer cm.dispatchMu.Unlock()

	payload, err := cm.encodeSnapshot()
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{
		ID:          uuid.New(),
		Transport:   transport,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		ConnectedAt: cm.clock.Now(),
	}
	sub.Send <- payload

	cm.mu.Lock()
	cm.subscribers[sub.ID] = sub
	total := len(cm.subscribers)
	cm.mu.Unlock()
	cm.updateGauge(transport)

	log.Info().
		Str("subscriber_id", sub.ID.String()).
		Str("transport", string(transport)).
		Int("total_subscribers", total).
		Msg("subscriber registered")

	return sub, nil
}

// Unregister removes the subscriber and closes its Send channel. Calling it
// again for the same subscriber is a no-op.
func (cm *ConnectionManager) Unregister(sub *Subscriber) {
	cm.mu.Lock()
	if _, ok := cm.subscribers[sub.ID]; !ok {
		cm.mu.Unlock()
		return
	}
	delete(cm.subscribers, sub.ID)
	close(sub.Send)
	total := len(cm.subscribers)
	cm.mu.Unlock()
	cm.updateGauge(sub.Transport)

	log.Info().
		Str("subscriber_id", sub.ID.String()).
		Str("transport", string(sub.Transport)).
		Dur("connected_for", cm.clock.Since(sub.ConnectedAt)).
		Int("total_subscribers", total).
		Msg("subscriber unregistered")
}

// Broadcast decays, serializes once and enqueues the snapshot to every
// subscriber. Subscribers whose buffer is full are dropped. It returns the
// number of subscribers the snapshot was delivered to.
func (cm *ConnectionManager) Broadcast(trigger string) int {
	cm.dispatchMu.Lock()
	defer cm.dispatchMu.Unlock()

	payload, err := cm.encodeSnapshot()
	if err != nil {
		log.Error().Err(err).Msg("failed to encode snapshot for broadcast")
		return 0
	}

	var slow []*Subscriber
	delivered := 0

	cm.mu.RLock()
	for _, sub := range cm.subscribers {
		select {
		case sub.Send <- payload:
			delivered++
		default:
			slow = append(slow, sub)
		}
	}
	cm.mu.RUnlock()

	for _, sub := range slow {
		log.Warn().
			Str("subscriber_id", sub.ID.String()).
			Str("transport", string(sub.Transport)).
			Msg("subscriber send buffer full, dropping subscriber")
		cm.metrics.RecordDropped()
		cm.Unregister(sub)
	}

	cm.metrics.RecordBroadcast(trigger)
	log.Debug().
		Str("trigger", trigger).
		Int("subscribers", delivered).
		Msg("snapshot broadcasted")

	return delivered
}

// Count returns the number of registered subscribers
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.subscribers)
}

// GetConnectionStats returns statistics about active subscribers
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	byTransport := map[string]int{
		string(TransportSSE):       0,
		string(TransportWebSocket): 0,
	}
	for _, sub := range cm.subscribers {
		byTransport[string(sub.Transport)]++
	}

	return map[string]interface{}{
		"total_connections": len(cm.subscribers),
		"by_transport":      byTransport,
	}
}

func (cm *ConnectionManager) encodeSnapshot() ([]byte, error) {
	data, err := json.Marshal(cm.source.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal match state: %w", err)
	}
	return data, nil
}

func (cm *ConnectionManager) updateGauge(transport Transport) {
	if cm.metrics == nil {
		return
	}
	cm.mu.RLock()
	n := 0
	for _, sub := range cm.subscribers {
		if sub.Transport == transport {
			n++
		}
	}
	cm.mu.RUnlock()
	cm.metrics.SetSubscribers(string(transport), n)
}
