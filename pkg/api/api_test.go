package api

import "testing"

func TestPacketDecode(t *testing.T) {
	in, err := Decode([]byte(`{"id":"42","t":101,"p":{"session_id":"abc"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if in.Id != "42" || in.T != SessionJoin {
		t.Errorf("bad envelope: %+v", in)
	}
	rq := Unwrap[SessionJoinRequest](in.Payload)
	if rq == nil || rq.SessionId != "abc" {
		t.Errorf("bad payload: %+v", rq)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte(`{]`)); err == nil {
		t.Error("garbage should not decode")
	}
	if out := Unwrap[SessionJoinRequest]([]byte(`[1,2]`)); out != nil {
		t.Error("mismatched payload should unwrap to nil")
	}
}

func TestEncodeSkipsEmptyFields(t *testing.T) {
	data, err := Encode(&Out{T: PeerJoined, Payload: PeerJoinedEvent{Id: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"t":201,"p":{"id":"x"}}` {
		t.Errorf("unexpected encoding: %s", data)
	}
}

func TestTypeNames(t *testing.T) {
	if SessionJoin.String() != "SessionJoin" || RateLimited.String() != "RateLimited" {
		t.Error("known types should have names")
	}
	if PT(77).String() != "Unknown(77)" {
		t.Errorf("unknown type should say so, got %s", PT(77).String())
	}
}
