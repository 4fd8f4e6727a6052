package gateway

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// SSEHandler streams snapshots as server-sent events
type SSEHandler struct {
	connectionManager *ConnectionManager
}

// NewSSEHandler creates a new server-sent events handler
func NewSSEHandler(cm *ConnectionManager) *SSEHandler {
	return &SSEHandler{connectionManager: cm}
}

// HandleEvents handles GET /events. Each message is "data: <json>\n\n"; the
// first one is the snapshot taken at connect time.
func (h *SSEHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rc := http.NewResponseController(w)
	// event streams stay open indefinitely
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("could not clear write deadline for event stream")
	}

	sub, err := h.connectionManager.Register(TransportSSE)
	if err != nil {
		log.Error().Err(err).Msg("failed to register event stream subscriber")
		writeJSONError(w, http.StatusInternalServerError, "Failed to open event stream")
		return
	}
	defer h.connectionManager.Unregister(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-r.Context().Done():
			return
		case payload, ok := <-sub.Send:
			if !ok {
				// dropped by the dispatcher
				return
			}
			if err := writeEvent(w, payload); err != nil {
				log.Debug().Err(err).Str("subscriber_id", sub.ID.String()).Msg("event stream write failed")
				return
			}
			if err := rc.Flush(); err != nil {
				log.Error().Err(err).Str("subscriber_id", sub.ID.String()).Msg("event stream flush failed")
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, payload []byte) error {
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')
	_, err := w.Write(buf)
	return err
}
