package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"path"

	"github.com/mcdev12/courtside/go/internal/models"
	"github.com/mcdev12/courtside/go/internal/scoreboard"
	"github.com/rs/zerolog/log"
)

// maxUpdateBody bounds the admin update payload.
const maxUpdateBody = 1 << 20

// StateUpdater applies admin updates and fans the result out
type StateUpdater interface {
	Update(ctx context.Context, req scoreboard.UpdateRequest) (models.MatchState, error)
}

// StateHandler handles the HTTP API used by displays and the admin panel
type StateHandler struct {
	source    StateSource
	updater   StateUpdater
	publicDir http.Dir
}

// NewStateHandler creates a new state handler
func NewStateHandler(source StateSource, updater StateUpdater, publicDir string) *StateHandler {
	return &StateHandler{
		source:    source,
		updater:   updater,
		publicDir: http.Dir(publicDir),
	}
}

// HandleGetMatchData handles GET /match-data
func (h *StateHandler) HandleGetMatchData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.HandleNotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.source.Snapshot())
}

// HandleUpdateMatch handles POST /update-match
func (h *StateHandler) HandleUpdateMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.HandleNotFound(w, r)
		return
	}

	req, err := scoreboard.DecodeUpdateRequest(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	if err == nil {
		_, err = h.updater.Update(r.Context(), req)
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	case errors.Is(err, scoreboard.ErrInvalidUpdate):
		log.Warn().Err(err).Msg("rejected match update")
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scoreboard.ErrPersist):
		writeJSONError(w, http.StatusInternalServerError, "Failed to save match data")
	default:
		log.Error().Err(err).Msg("failed to update match")
		writeJSONError(w, http.StatusInternalServerError, "Failed to update match data")
	}
}

// HandleAdmin handles GET /admin
func (h *StateHandler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.HandleNotFound(w, r)
		return
	}
	if !h.serveFile(w, r, "/admin.html") {
		h.HandleNotFound(w, r)
	}
}

// HandleFallback serves files from the public directory, or a JSON 404
func (h *StateHandler) HandleFallback(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		name := path.Clean("/" + r.URL.Path)
		if name == "/" {
			name = "/index.html"
		}
		if h.serveFile(w, r, name) {
			return
		}
	}
	h.HandleNotFound(w, r)
}

// HandleNotFound replies with the JSON 404 body displays expect
func (h *StateHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("route not found")
	writeJSONError(w, http.StatusNotFound, "Route not found")
}

// serveFile serves a regular file from the public directory and reports
// whether it did.
func (h *StateHandler) serveFile(w http.ResponseWriter, r *http.Request, name string) bool {
	f, err := h.publicDir.Open(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Error().Err(err).Str("file", name).Msg("failed to open public file")
		}
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}

// RegisterStateRoutes registers the state and static routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/match-data", h.HandleGetMatchData)
	mux.HandleFunc("/update-match", h.HandleUpdateMatch)
	mux.HandleFunc("/admin", h.HandleAdmin)
	mux.HandleFunc("/", h.HandleFallback)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
