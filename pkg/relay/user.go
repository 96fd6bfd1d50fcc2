package relay

import (
	"github.com/peerdrop/relay/pkg/api"
	"github.com/peerdrop/relay/pkg/com"
	"github.com/peerdrop/relay/pkg/logger"
)

// Transport is the outbound half of a user connection.
// Writes are fire-and-forget; a stuck receiver never blocks the caller.
type Transport interface {
	Write(data []byte)
	Close()
}

// User is one connected browser.
type User struct {
	id   com.Uid
	ip   string
	wire Transport
	log  *logger.Logger
}

func NewUser(wire Transport, ip string, log *logger.Logger) *User {
	id := com.NewUid()
	return &User{
		id:   id,
		ip:   ip,
		wire: wire,
		log:  log.Extend(log.With().Str("cid", id.Short())),
	}
}

func (u *User) Id() com.Uid { return u.id }

func (u *User) Disconnect() { u.wire.Close() }

// Notify pushes an unsolicited event packet to the user.
func (u *User) Notify(t api.PT, payload any) { u.send(&api.Out{T: t, Payload: payload}) }

// Reply answers a request packet, echoing its correlation id.
func (u *User) Reply(id string, t api.PT, payload any) {
	u.send(&api.Out{Id: id, T: t, Payload: payload})
}

func (u *User) send(packet *api.Out) {
	data, err := api.Encode(packet)
	if err != nil {
		u.log.Error().Err(err).Msgf("packet %v encode fail", packet.T)
		return
	}
	u.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", packet.T)
	u.wire.Write(data)
}

func (u *User) String() string { return "u:" + u.id.Short() }
