// Package api defines the relay's client wire protocol.
//
// Each API call (request, response, and event) is a JSON-encoded "packet" of
// the following structure:
//
//	id - (optional) a packet id used for request/response correlation;
//	 t - (required) one of the predefined unique packet types;
//	 p - (optional) packet payload with arbitrary data.
//
// Packets differentiate by their predefined types with which it is possible
// to unwrap the payload into distinct request/response data structures.
// Signaling payloads (SDP, ICE candidates, keys, signatures) are opaque to
// the relay and are forwarded as-is.
package api

import (
	"fmt"

	"github.com/goccy/go-json"
)

type (
	In struct {
		Id      string          `json:"id,omitempty"`
		T       PT              `json:"t"`
		Payload json.RawMessage `json:"p,omitempty"` // requires 2-pass unmarshal
	}
	Out struct {
		Id      string `json:"id,omitempty"`
		T       PT     `json:"t"`
		Payload any    `json:"p,omitempty"`
	}
	PT uint8
)

// Packet codes:
//
//	1xx - client requests
//	2xx - relay events
const (
	SessionJoin   PT = 101
	SessionLeave  PT = 102
	Offer         PT = 103
	Answer        PT = 104
	IceCandidate  PT = 105
	PublicKey     PT = 106
	Signature     PT = 107
	SessionLock   PT = 108
	SessionUnlock PT = 109
	PeerKick      PT = 110
	PairConnected PT = 111
	PairClosed    PT = 112

	PeerJoined      PT = 201
	PeerLeft        PT = 202
	SessionLocked   PT = 203
	SessionUnlocked PT = 204
	Kicked          PT = 205
	RateLimited     PT = 206
)

func (p PT) String() string {
	switch p {
	case SessionJoin:
		return "SessionJoin"
	case SessionLeave:
		return "SessionLeave"
	case Offer:
		return "Offer"
	case Answer:
		return "Answer"
	case IceCandidate:
		return "IceCandidate"
	case PublicKey:
		return "PublicKey"
	case Signature:
		return "Signature"
	case SessionLock:
		return "SessionLock"
	case SessionUnlock:
		return "SessionUnlock"
	case PeerKick:
		return "PeerKick"
	case PairConnected:
		return "PairConnected"
	case PairClosed:
		return "PairClosed"
	case PeerJoined:
		return "PeerJoined"
	case PeerLeft:
		return "PeerLeft"
	case SessionLocked:
		return "SessionLocked"
	case SessionUnlocked:
		return "SessionUnlocked"
	case Kicked:
		return "Kicked"
	case RateLimited:
		return "RateLimited"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

// Unwrap deserializes a packet payload into the concrete type T.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

func Encode(packet *Out) ([]byte, error) { return json.Marshal(packet) }

func Decode(data []byte) (*In, error) {
	in := &In{}
	if err := json.Unmarshal(data, in); err != nil {
		return nil, err
	}
	return in, nil
}
