package relay

import (
	"errors"

	"github.com/peerdrop/relay/pkg/api"
	"github.com/peerdrop/relay/pkg/com"
	"github.com/peerdrop/relay/pkg/ratelimit"
	"github.com/peerdrop/relay/pkg/session"
)

// limited checks the rate limiter for the operation and, on denial,
// answers the caller with a retry-after hint instead of the op result.
func (h *Hub) limited(u *User, in *api.In, key string, op ratelimit.Op) bool {
	res := h.limiter.IsAllowed(key, op)
	if res.Allowed {
		return false
	}
	metricRateLimited.WithLabelValues(op.String()).Inc()
	u.log.Debug().Msgf("%v throttled, retry in %v", op, res.RetryAfter)
	u.Reply(in.Id, api.RateLimited, api.RateLimitEvent{Op: uint8(op), RetryAfterMs: res.RetryAfter.Milliseconds()})
	return true
}

// caller resolves the user's peer record.
// Signaling from a connection with no record is silently ignored,
// it races naturally with kicks and session expiry.
func (h *Hub) caller(u *User) (session.Peer, bool) {
	peer, err := h.store.GetPeerByConnectionId(u.id)
	if err != nil {
		u.log.Debug().Msg("signal from a sessionless connection ignored")
		return session.Peer{}, false
	}
	return peer, true
}

func (h *Hub) handleSessionJoin(u *User, in *api.In) {
	// joins are keyed by IP to blunt session id enumeration
	if h.limited(u, in, u.ip, ratelimit.Join) {
		return
	}
	rq := api.Unwrap[api.SessionJoinRequest](in.Payload)
	if rq == nil {
		u.log.Warn().Msg("malformed join request dropped")
		return
	}

	if !h.store.SessionExists(rq.SessionId) {
		h.rejectJoin(u, in, api.ReasonNotFound)
		return
	}
	// locked sessions fail fast, before any admission attempt
	if h.store.IsSessionLocked(rq.SessionId) {
		h.rejectJoin(u, in, api.ReasonLocked)
		return
	}

	h.order.Lock()
	peer, err := h.store.AddPeerToSession(rq.SessionId, u.id)
	if err != nil {
		h.order.Unlock()
		h.rejectJoin(u, in, joinReason(err))
		return
	}
	others := make([]string, 0, 8)
	for _, p := range h.store.GetPeersInSession(rq.SessionId) {
		if p.ConnectionId != u.id {
			others = append(others, p.ConnectionId.String())
		}
	}
	host, _ := h.store.GetSessionCreator(rq.SessionId)
	locked := h.store.IsSessionLocked(rq.SessionId)
	h.notifyGroup(rq.SessionId, api.PeerJoined, api.PeerJoinedEvent{Id: u.id.String()}, u.id)
	h.order.Unlock()

	metricJoins.WithLabelValues("ok").Inc()
	u.log.Info().Msgf("joined session %s", rq.SessionId)
	u.Reply(in.Id, api.SessionJoin, api.SessionJoinReply{
		Success:       true,
		IsInitiator:   peer.IsInitiator,
		ExistingPeers: others,
		IsHost:        host == u.id,
		HostId:        host.String(),
		IsLocked:      locked,
	})
}

func (h *Hub) rejectJoin(u *User, in *api.In, reason string) {
	metricJoins.WithLabelValues(reason).Inc()
	u.Reply(in.Id, api.SessionJoin, api.SessionJoinReply{Reason: reason})
}

func joinReason(err error) string {
	switch {
	case errors.Is(err, session.ErrLocked):
		return api.ReasonLocked
	case errors.Is(err, session.ErrFull):
		return api.ReasonFull
	case errors.Is(err, session.ErrNotFound):
		return api.ReasonNotFound
	}
	return api.ReasonNotAllowed
}

func (h *Hub) handleSessionLeave(u *User, in *api.In) {
	if h.limited(u, in, u.id.String(), ratelimit.Signal) {
		return
	}
	if peer, ok := h.caller(u); ok {
		h.order.Lock()
		h.store.RemovePeerFromSession(peer.SessionId, u.id)
		h.notifyGroup(peer.SessionId, api.PeerLeft, api.PeerLeftEvent{Id: u.id.String()})
		h.order.Unlock()
		u.log.Info().Msgf("left session %s", peer.SessionId)
	}
	// leaving twice is fine
	u.Reply(in.Id, api.SessionLeave, api.OkReply)
}

func (h *Hub) handleSdp(u *User, in *api.In, t api.PT) {
	if h.limited(u, in, u.id.String(), ratelimit.Signal) {
		return
	}
	peer, ok := h.caller(u)
	if !ok {
		return
	}
	rq := api.Unwrap[api.Sdp](in.Payload)
	if rq == nil {
		u.log.Warn().Msgf("malformed %v dropped", t)
		return
	}
	to := rq.To
	rq.From, rq.To = u.id.String(), ""
	h.relay(u, peer, to, t, rq, "sdp")
}

func (h *Hub) handleIceCandidate(u *User, in *api.In) {
	if h.limited(u, in, u.id.String(), ratelimit.Ice) {
		return
	}
	peer, ok := h.caller(u)
	if !ok {
		return
	}
	rq := api.Unwrap[api.Ice](in.Payload)
	if rq == nil {
		u.log.Warn().Msg("malformed ice candidate dropped")
		return
	}
	to := rq.To
	rq.From, rq.To = u.id.String(), ""
	h.relay(u, peer, to, api.IceCandidate, rq, "ice")
}

func (h *Hub) handlePublicKey(u *User, in *api.In) {
	if h.limited(u, in, u.id.String(), ratelimit.Signal) {
		return
	}
	peer, ok := h.caller(u)
	if !ok {
		return
	}
	rq := api.Unwrap[api.Key](in.Payload)
	if rq == nil {
		u.log.Warn().Msg("malformed public key dropped")
		return
	}
	to := rq.To
	rq.From, rq.To = u.id.String(), ""
	h.relay(u, peer, to, api.PublicKey, rq, "key")
}

func (h *Hub) handleSignature(u *User, in *api.In) {
	if h.limited(u, in, u.id.String(), ratelimit.Signal) {
		return
	}
	peer, ok := h.caller(u)
	if !ok {
		return
	}
	rq := api.Unwrap[api.Sig](in.Payload)
	if rq == nil {
		u.log.Warn().Msg("malformed signature dropped")
		return
	}
	rq.From = u.id.String()
	h.relay(u, peer, "", api.Signature, rq, "sig")
}

// relay forwards an opaque signaling payload to one session mate, or to
// the whole group minus the sender when no target is given. A target
// outside the sender's session is dropped without telling the sender
// anything about it.
func (h *Hub) relay(u *User, from session.Peer, to string, t api.PT, payload any, kind string) {
	if to == "" {
		h.notifyGroup(from.SessionId, t, payload, u.id)
		metricRelayed.WithLabelValues(kind).Inc()
		return
	}
	target, err := com.UidFrom(to)
	if err != nil {
		h.dropSignal(u, kind, to)
		return
	}
	tp, err := h.store.GetPeerByConnectionId(target)
	if err != nil || tp.SessionId != from.SessionId {
		h.dropSignal(u, kind, to)
		return
	}
	if member, err := h.users.Find(target); err == nil {
		member.Notify(t, payload)
		metricRelayed.WithLabelValues(kind).Inc()
	}
}

func (h *Hub) dropSignal(u *User, kind string, to string) {
	metricDropped.WithLabelValues("target_mismatch").Inc()
	u.log.Warn().Msgf("%s for a foreign target %s dropped", kind, to)
}

func (h *Hub) handleSessionLock(u *User, in *api.In, lock bool) {
	if h.limited(u, in, u.id.String(), ratelimit.Signal) {
		return
	}
	t, ev := api.SessionLock, api.SessionLocked
	if !lock {
		t, ev = api.SessionUnlock, api.SessionUnlocked
	}
	peer, ok := h.caller(u)
	if !ok {
		u.Reply(in.Id, t, api.Fail(api.ReasonNotAllowed))
		return
	}
	var done bool
	if lock {
		done = h.store.LockSession(peer.SessionId, u.id)
	} else {
		done = h.store.UnlockSession(peer.SessionId, u.id)
	}
	if !done {
		u.Reply(in.Id, t, api.Fail(api.ReasonNotAllowed))
		return
	}
	h.notifyGroup(peer.SessionId, ev, api.SessionLockEvent{By: u.id.String()})
	u.Reply(in.Id, t, api.OkReply)
}

func (h *Hub) handlePeerKick(u *User, in *api.In) {
	if h.limited(u, in, u.id.String(), ratelimit.Signal) {
		return
	}
	peer, ok := h.caller(u)
	rq := api.Unwrap[api.Target](in.Payload)
	if !ok || rq == nil {
		u.Reply(in.Id, api.PeerKick, api.Fail(api.ReasonNotAllowed))
		return
	}
	target, err := com.UidFrom(rq.Id)
	// all checks pass before anything mutates: caller is host,
	// target is someone else, target shares the caller's session
	if err != nil || target == u.id || !h.store.IsSessionCreator(peer.SessionId, u.id) {
		u.Reply(in.Id, api.PeerKick, api.Fail(api.ReasonNotAllowed))
		return
	}
	tp, err := h.store.GetPeerByConnectionId(target)
	if err != nil || tp.SessionId != peer.SessionId {
		u.Reply(in.Id, api.PeerKick, api.Fail(api.ReasonNotAllowed))
		return
	}

	h.order.Lock()
	h.store.RemovePeerFromSession(peer.SessionId, target)
	if member, err := h.users.Find(target); err == nil {
		member.Notify(api.Kicked, nil)
	}
	h.notifyGroup(peer.SessionId, api.PeerLeft, api.PeerLeftEvent{Id: target.String()})
	h.order.Unlock()

	u.log.Info().Msgf("kicked %s from session %s", target.Short(), peer.SessionId)
	u.Reply(in.Id, api.PeerKick, api.OkReply)
}

// handlePairChange records a direct link the target pair reports as
// established or closed; active links keep the session alive.
func (h *Hub) handlePairChange(u *User, in *api.In, delta int) {
	peer, ok := h.caller(u)
	if !ok {
		return
	}
	rq := api.Unwrap[api.Target](in.Payload)
	if rq == nil {
		u.log.Warn().Msg("malformed pair report dropped")
		return
	}
	target, err := com.UidFrom(rq.Id)
	if err != nil {
		h.dropSignal(u, "pair", rq.Id)
		return
	}
	tp, err := h.store.GetPeerByConnectionId(target)
	if err != nil || tp.SessionId != peer.SessionId {
		h.dropSignal(u, "pair", rq.Id)
		return
	}
	if delta > 0 {
		h.store.IncrementConnectedPairs(peer.SessionId)
	} else {
		h.store.DecrementConnectedPairs(peer.SessionId)
	}
}
