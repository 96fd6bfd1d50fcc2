package session

import (
	"errors"
	"sync"
	"time"

	"github.com/peerdrop/relay/pkg/com"
	"github.com/peerdrop/relay/pkg/config"
)

var (
	ErrNotFound   = errors.New("session not found")
	ErrLocked     = errors.New("session is locked")
	ErrFull       = errors.New("session is full")
	ErrPeerExists = errors.New("connection already has a peer")
)

// Store owns every Session and Peer record.
// It is the sole mutable shared state of the relay: capacity, lock, and
// host checks happen inside one critical section per session, so two
// concurrent admissions can never both pass a full session.
type Store struct {
	conf  config.Session
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	// conns indexes peers by their connection id, the primary lookup
	// of every signaling operation.
	conns com.Map[com.Uid, *Peer]
}

func NewStore(conf config.Session) *Store {
	return &Store{
		conf:     conf,
		clock:    time.Now,
		sessions: make(map[string]*Session, 10),
		conns:    com.NewMap[com.Uid, *Peer](),
	}
}

// WithClock swaps the time source, for tests.
func (s *Store) WithClock(clock func() time.Time) *Store { s.clock = clock; return s }

// CreateSession makes a fresh session record.
// A maxPeers of zero means the configured default; bigger values are
// clamped to the configured hard cap.
func (s *Store) CreateSession(creatorId string, maxPeers int) (Info, error) {
	if maxPeers <= 0 {
		maxPeers = s.conf.DefaultMaxPeers
	}
	if maxPeers > s.conf.MaxPeersLimit {
		maxPeers = s.conf.MaxPeersLimit
	}

	now := s.clock()
	sess := &Session{
		creatorId:         creatorId,
		createdAt:         now,
		expiresAt:         now.Add(s.conf.BaseTTL),
		absoluteExpiresAt: now.Add(s.conf.AbsoluteTTL),
		emptySince:        now,
		maxPeers:          maxPeers,
		peers:             make(map[com.Uid]*Peer, maxPeers),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		id, err := newId()
		if err != nil {
			return Info{}, err
		}
		if _, taken := s.sessions[id]; taken {
			continue
		}
		sess.id = id
		s.sessions[id] = sess
		break
	}
	return sess.Snapshot(), nil
}

func (s *Store) find(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

func (s *Store) GetSession(id string) (Info, error) {
	sess := s.find(id)
	if sess == nil {
		return Info{}, ErrNotFound
	}
	return sess.Snapshot(), nil
}

func (s *Store) SessionExists(id string) bool { return s.find(id) != nil }

// IsSessionLocked treats an unknown id as not locked; existence is a
// separate check on purpose.
func (s *Store) IsSessionLocked(id string) bool {
	sess := s.find(id)
	if sess == nil {
		return false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.isLocked
}

// AddPeerToSession admits a connection into a session.
// The capacity and lock checks are atomic with the admission itself.
// The peer admitted while the session is empty becomes the initiator;
// the very first of those also becomes the session host.
func (s *Store) AddPeerToSession(sessionId string, connectionId com.Uid) (Peer, error) {
	sess := s.find(sessionId)
	if sess == nil {
		return Peer{}, ErrNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.dead {
		return Peer{}, ErrNotFound
	}
	if sess.isLocked {
		return Peer{}, ErrLocked
	}
	if len(sess.peers) >= sess.maxPeers {
		return Peer{}, ErrFull
	}

	peer := &Peer{
		ConnectionId: connectionId,
		SessionId:    sessionId,
		IsInitiator:  len(sess.peers) == 0,
	}
	if !s.conns.PutIfAbsent(connectionId, peer) {
		return Peer{}, ErrPeerExists
	}
	if sess.host.IsEmpty() {
		sess.host = connectionId
	}
	sess.peers[connectionId] = peer
	sess.emptySince = time.Time{}
	return *peer, nil
}

// RemovePeerFromSession removes a connection's peer record.
// Removing an absent peer is a no-op.
func (s *Store) RemovePeerFromSession(sessionId string, connectionId com.Uid) {
	sess := s.find(sessionId)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, ok := sess.peers[connectionId]; !ok {
		return
	}
	delete(sess.peers, connectionId)
	s.conns.RemoveByKey(connectionId)
	if len(sess.peers) == 0 {
		sess.emptySince = s.clock()
	}
}

// GetPeersInSession returns a snapshot of the session members,
// an empty list for an unknown session.
func (s *Store) GetPeersInSession(sessionId string) []Peer {
	sess := s.find(sessionId)
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	peers := make([]Peer, 0, len(sess.peers))
	for _, p := range sess.peers {
		peers = append(peers, *p)
	}
	return peers
}

func (s *Store) GetPeerByConnectionId(connectionId com.Uid) (Peer, error) {
	p, err := s.conns.Find(connectionId)
	if err != nil {
		return Peer{}, ErrNotFound
	}
	return *p, nil
}

func (s *Store) IsSessionCreator(sessionId string, connectionId com.Uid) bool {
	host, ok := s.GetSessionCreator(sessionId)
	return ok && host == connectionId
}

func (s *Store) GetSessionCreator(sessionId string) (com.Uid, bool) {
	sess := s.find(sessionId)
	if sess == nil {
		return com.NilUid, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.host.IsEmpty() {
		return com.NilUid, false
	}
	return sess.host, true
}

// LockSession closes the session for new admissions.
// Only the host connection may lock; existing peers are not evicted.
func (s *Store) LockSession(sessionId string, connectionId com.Uid) bool {
	return s.setLocked(sessionId, connectionId, true)
}

func (s *Store) UnlockSession(sessionId string, connectionId com.Uid) bool {
	return s.setLocked(sessionId, connectionId, false)
}

func (s *Store) setLocked(sessionId string, connectionId com.Uid, locked bool) bool {
	sess := s.find(sessionId)
	if sess == nil {
		return false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.host != connectionId {
		return false
	}
	sess.isLocked = locked
	return true
}

// IncrementConnectedPairs records one established direct peer link.
// A session with links above zero is kept alive by the sweeper.
func (s *Store) IncrementConnectedPairs(sessionId string) {
	s.adjustPairs(sessionId, 1)
}

func (s *Store) DecrementConnectedPairs(sessionId string) {
	s.adjustPairs(sessionId, -1)
}

func (s *Store) adjustPairs(sessionId string, delta int) {
	sess := s.find(sessionId)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.connectedPairs += delta
	if sess.connectedPairs < 0 {
		sess.connectedPairs = 0
	}
}

// Len returns the current session count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep makes one expiry pass and returns the number of reaped sessions:
// sessions with established pairs get their soft deadline pushed toward
// now+BaseTTL (clamped by the hard cap), then anything past its hard cap,
// past its soft deadline, or empty beyond the grace period is removed
// together with its residual peer records.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()

		if sess.connectedPairs > 0 && now.Before(sess.absoluteExpiresAt) {
			extended := now.Add(s.conf.BaseTTL)
			if extended.After(sess.absoluteExpiresAt) {
				extended = sess.absoluteExpiresAt
			}
			if extended.After(sess.expiresAt) {
				sess.expiresAt = extended
			}
		}

		expired := now.After(sess.absoluteExpiresAt) ||
			now.After(sess.expiresAt) ||
			(len(sess.peers) == 0 && !sess.emptySince.IsZero() && now.After(sess.emptySince.Add(s.conf.EmptyGrace)))

		if expired {
			for connId := range sess.peers {
				s.conns.RemoveByKey(connId)
			}
			sess.dead = true
			delete(s.sessions, id)
			reaped++
		}
		sess.mu.Unlock()
	}
	return reaped
}
