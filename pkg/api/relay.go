package api

import "github.com/goccy/go-json"

// Join rejection reasons, surfaced as reported results, never errors.
const (
	ReasonNotFound   = "not_found"
	ReasonFull       = "full"
	ReasonLocked     = "locked"
	ReasonNotAllowed = "not_allowed"
)

type (
	SessionJoinRequest struct {
		SessionId string `json:"session_id"`
	}
	// SessionJoinReply tells the caller the outcome of a join attempt and,
	// on success, everything needed to start handshaking with the group.
	SessionJoinReply struct {
		Success       bool     `json:"success"`
		Reason        string   `json:"reason,omitempty"`
		IsInitiator   bool     `json:"is_initiator,omitempty"`
		ExistingPeers []string `json:"existing_peers,omitempty"`
		IsHost        bool     `json:"is_host,omitempty"`
		HostId        string   `json:"host_id,omitempty"`
		IsLocked      bool     `json:"is_locked,omitempty"`
	}
	// Reply is the generic outcome of host-power requests (lock/unlock/kick).
	Reply struct {
		Success bool   `json:"success"`
		Reason  string `json:"reason,omitempty"`
	}

	// Sdp carries an opaque session description, broadcast or targeted.
	Sdp struct {
		From string `json:"from,omitempty"`
		To   string `json:"to,omitempty"`
		Sdp  string `json:"sdp"`
	}
	Ice struct {
		From          string `json:"from,omitempty"`
		To            string `json:"to,omitempty"`
		Candidate     string `json:"candidate"`
		SdpMid        string `json:"sdp_mid,omitempty"`
		SdpMLineIndex int    `json:"sdp_m_line_index,omitempty"`
	}
	Key struct {
		From string          `json:"from,omitempty"`
		To   string          `json:"to,omitempty"`
		Jwk  json.RawMessage `json:"jwk"`
	}
	Sig struct {
		From      string `json:"from,omitempty"`
		Signature string `json:"signature"`
		Challenge string `json:"challenge,omitempty"`
	}

	// Target points at another connection in the caller's session.
	Target struct {
		Id string `json:"id"`
	}

	PeerJoinedEvent struct {
		Id string `json:"id"`
	}
	PeerLeftEvent struct {
		Id string `json:"id"`
	}
	SessionLockEvent struct {
		By string `json:"by"`
	}
	RateLimitEvent struct {
		Op           uint8 `json:"op"`
		RetryAfterMs int64 `json:"retry_after_ms"`
	}
)

var (
	OkReply = Reply{Success: true}
)

func Fail(reason string) Reply { return Reply{Reason: reason} }
