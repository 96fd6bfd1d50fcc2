package session

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/peerdrop/relay/pkg/com"
)

// Peer is one connection's membership record inside a session.
type Peer struct {
	ConnectionId com.Uid `json:"connection_id"`
	SessionId    string  `json:"session_id"`
	// IsInitiator is set for the peer admitted while the session was empty;
	// the client side uses it to decide which end makes the handshake offer.
	IsInitiator bool `json:"is_initiator"`
}

// Session identifies one rendezvous point for a group of peers.
// All mutations go through its owning Store and are guarded by mu.
type Session struct {
	mu sync.Mutex

	id        string
	creatorId string // audit-only identity of whoever requested creation

	createdAt         time.Time
	expiresAt         time.Time // soft deadline, extendable while pairs are active
	absoluteExpiresAt time.Time // hard cap, never extended
	emptySince        time.Time // zero while the session has peers

	maxPeers       int
	isLocked       bool
	hostOnlySend   bool
	connectedPairs int

	// dead marks a session reaped by the sweeper. An admission that
	// found the session just before the reap re-checks this flag under
	// mu, so it can never land a peer in a removed session.
	dead bool

	// host is the connection of the first ever admitted peer; it keeps
	// lock/unlock/kick powers even when the initiator flag moves on.
	host  com.Uid
	peers map[com.Uid]*Peer
}

// Info is a plain read-only snapshot of a session, also the JSON shape
// of the HTTP session API.
type Info struct {
	Id                string    `json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	AbsoluteExpiresAt time.Time `json:"absolute_expires_at"`
	PeerCount         int       `json:"peer_count"`
	ConnectedPairs    int       `json:"connected_peer_pairs"`
	MaxPeers          int       `json:"max_peers"`
	IsLocked          bool      `json:"is_locked"`
	HostOnlySending   bool      `json:"is_host_only_sending"`
	CreatorId         string    `json:"creator_id,omitempty"`
}

func (s *Session) Id() string { return s.id }

func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Id:                s.id,
		CreatedAt:         s.createdAt,
		ExpiresAt:         s.expiresAt,
		AbsoluteExpiresAt: s.absoluteExpiresAt,
		PeerCount:         len(s.peers),
		ConnectedPairs:    s.connectedPairs,
		MaxPeers:          s.maxPeers,
		IsLocked:          s.isLocked,
		HostOnlySending:   s.hostOnlySend,
		CreatorId:         s.creatorId,
	}
}

// newId makes a 22-character URL-safe session token with 122 bits
// of entropy (base64url of a random UUID's bytes).
func newId() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("session id generation: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(id.Bytes()), nil
}
