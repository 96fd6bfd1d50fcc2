package relay

import (
	"net"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

type createSessionRequest struct {
	MaxPeers int `json:"max_peers,omitempty"`
}

// handleCreateSession makes a new session over plain HTTP, so a page
// can mint an invite link before opening its websocket.
func (h *Hub) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var rq createSessionRequest
	if r.Body != nil {
		// an empty body means all defaults
		_ = json.NewDecoder(r.Body).Decode(&rq)
	}

	info, err := h.store.CreateSession(r.Header.Get("X-Client-Id"), rq.MaxPeers)
	if err != nil {
		h.log.Error().Err(err).Msg("session create fail")
		writeError(w, http.StatusInternalServerError, "session create fail")
		return
	}
	h.log.Info().Msgf("session %s created, cap %d", info.Id, info.MaxPeers)
	writeJSON(w, http.StatusCreated, info)
}

// handleSessionInfo exposes a session snapshot at /sessions/{id}.
func (h *Hub) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	info, err := h.store.GetSession(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func handleInfo(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// remoteIP picks the client address for the join rate limiter,
// preferring the first proxy-forwarded hop.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
