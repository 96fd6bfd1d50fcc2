package relay

import (
	"net/http"
	"sync"

	"github.com/peerdrop/relay/pkg/api"
	"github.com/peerdrop/relay/pkg/com"
	"github.com/peerdrop/relay/pkg/logger"
	"github.com/peerdrop/relay/pkg/network/websocket"
	"github.com/peerdrop/relay/pkg/ratelimit"
	"github.com/peerdrop/relay/pkg/session"
)

// Hub tracks live user connections and routes their packets.
type Hub struct {
	users   com.NetMap[*User]
	store   *session.Store
	limiter *ratelimit.Limiter
	log     *logger.Logger

	// order serializes membership fan-out so every member observes
	// PeerJoined/PeerLeft in admission order.
	order sync.Mutex
}

func NewHub(store *session.Store, limiter *ratelimit.Limiter, log *logger.Logger) *Hub {
	return &Hub{
		users:   com.NewNetMap[*User](),
		store:   store,
		limiter: limiter,
		log:     log,
	}
}

// handleUserConnection handles a new websocket connection from a browser.
func (h *Hub) handleUserConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Upgrade(w, r)
	if err != nil {
		h.log.Error().Err(err).Msg("socket upgrade fail")
		return
	}

	sock := websocket.NewServer(conn, h.log)
	usr := NewUser(sock, remoteIP(r), h.log)
	usr.log.Info().Msg("connected")
	metricConnections.Inc()

	h.users.Add(usr)
	defer h.disconnect(usr)

	sock.OnMessage = func(message []byte, err error) {
		if err != nil {
			return
		}
		h.route(usr, message)
	}
	<-sock.Listen()
}

// route dispatches one inbound packet to its handler.
func (h *Hub) route(u *User, message []byte) {
	in, err := api.Decode(message)
	if err != nil {
		u.log.Warn().Err(err).Msg("unreadable packet dropped")
		return
	}
	u.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", in.T)

	switch in.T {
	case api.SessionJoin:
		h.handleSessionJoin(u, in)
	case api.SessionLeave:
		h.handleSessionLeave(u, in)
	case api.Offer:
		h.handleSdp(u, in, api.Offer)
	case api.Answer:
		h.handleSdp(u, in, api.Answer)
	case api.IceCandidate:
		h.handleIceCandidate(u, in)
	case api.PublicKey:
		h.handlePublicKey(u, in)
	case api.Signature:
		h.handleSignature(u, in)
	case api.SessionLock:
		h.handleSessionLock(u, in, true)
	case api.SessionUnlock:
		h.handleSessionLock(u, in, false)
	case api.PeerKick:
		h.handlePeerKick(u, in)
	case api.PairConnected:
		h.handlePairChange(u, in, 1)
	case api.PairClosed:
		h.handlePairChange(u, in, -1)
	default:
		u.log.Warn().Msgf("unknown packet type %v", in.T)
	}
}

// Close drops every live connection, part of the service shutdown.
func (h *Hub) Close() { h.users.ForEach(func(u *User) { u.Disconnect() }) }

// disconnect is called when a user connection closes for any reason.
func (h *Hub) disconnect(u *User) {
	h.users.Remove(u)
	if peer, err := h.store.GetPeerByConnectionId(u.id); err == nil {
		h.order.Lock()
		h.store.RemovePeerFromSession(peer.SessionId, u.id)
		h.notifyGroup(peer.SessionId, api.PeerLeft, api.PeerLeftEvent{Id: u.id.String()})
		h.order.Unlock()
	}
	h.limiter.ClearKey(u.id.String())
	metricConnections.Dec()
	u.log.Info().Msg("disconnected")
}

// notifyGroup fans an event out to every member of a session except
// the connections listed in skip.
func (h *Hub) notifyGroup(sessionId string, t api.PT, payload any, skip ...com.Uid) {
	for _, peer := range h.store.GetPeersInSession(sessionId) {
		if skipped(peer.ConnectionId, skip) {
			continue
		}
		if member, err := h.users.Find(peer.ConnectionId); err == nil {
			member.Notify(t, payload)
		}
	}
}

func skipped(id com.Uid, skip []com.Uid) bool {
	for _, s := range skip {
		if s == id {
			return true
		}
	}
	return false
}
