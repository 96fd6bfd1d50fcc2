package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/peerdrop/relay/pkg/session"
)

func TestCreateSessionEndpoint(t *testing.T) {
	h := newTestHub(t, laxLimits)

	t.Run("Defaults", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.handleCreateSession(w, httptest.NewRequest(http.MethodPost, "/sessions", nil))
		if w.Code != http.StatusCreated {
			t.Fatalf("want 201, got %d", w.Code)
		}
		var info session.Info
		if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
			t.Fatal(err)
		}
		if len(info.Id) != 22 {
			t.Errorf("want a 22-char id, got %q", info.Id)
		}
		if info.MaxPeers != testSessionConf.DefaultMaxPeers {
			t.Errorf("want default capacity %d, got %d", testSessionConf.DefaultMaxPeers, info.MaxPeers)
		}
	})

	t.Run("ClampedCapacity", func(t *testing.T) {
		w := httptest.NewRecorder()
		rq := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"max_peers":99}`))
		h.handleCreateSession(w, rq)
		var info session.Info
		if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
			t.Fatal(err)
		}
		if info.MaxPeers != testSessionConf.MaxPeersLimit {
			t.Errorf("want clamp to %d, got %d", testSessionConf.MaxPeersLimit, info.MaxPeers)
		}
	})

	t.Run("CreatorFromHeader", func(t *testing.T) {
		w := httptest.NewRecorder()
		rq := httptest.NewRequest(http.MethodPost, "/sessions", nil)
		rq.Header.Set("X-Client-Id", "alice")
		h.handleCreateSession(w, rq)
		var info session.Info
		if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
			t.Fatal(err)
		}
		if info.CreatorId != "alice" {
			t.Errorf("want creator alice, got %q", info.CreatorId)
		}
	})

	t.Run("GetNotAllowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.handleCreateSession(w, httptest.NewRequest(http.MethodGet, "/sessions", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("want 405, got %d", w.Code)
		}
	})
}

func TestSessionInfoEndpoint(t *testing.T) {
	h := newTestHub(t, laxLimits)
	sess := mustCreate(t, h, 4)

	t.Run("Found", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.handleSessionInfo(w, httptest.NewRequest(http.MethodGet, "/sessions/"+sess.Id, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", w.Code)
		}
		var info session.Info
		if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
			t.Fatal(err)
		}
		if info.Id != sess.Id || info.MaxPeers != 4 {
			t.Errorf("unexpected snapshot %+v", info)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.handleSessionInfo(w, httptest.NewRequest(http.MethodGet, "/sessions/ghost", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", w.Code)
		}
	})

	t.Run("EmptyId", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.handleSessionInfo(w, httptest.NewRequest(http.MethodGet, "/sessions/", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", w.Code)
		}
	})
}

func TestRemoteIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{name: "direct", remoteAddr: "192.0.2.7:51234", want: "192.0.2.7"},
		{name: "forwarded", remoteAddr: "10.0.0.1:80", forwarded: "203.0.113.9", want: "203.0.113.9"},
		{name: "forwarded chain", remoteAddr: "10.0.0.1:80", forwarded: "203.0.113.9, 10.0.0.2", want: "203.0.113.9"},
		{name: "no port", remoteAddr: "192.0.2.7", want: "192.0.2.7"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := remoteIP(r); got != tc.want {
				t.Errorf("want %q, got %q", tc.want, got)
			}
		})
	}
}
