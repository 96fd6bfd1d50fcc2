package websocket

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/peerdrop/relay/pkg/logger"
)

func TestRoundtrip(t *testing.T) {
	log := logger.Default()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r)
		if err != nil {
			t.Error(err)
			return
		}
		sock := NewServer(conn, log)
		sock.OnMessage = func(message []byte, err error) { sock.Write(message) }
		sock.Listen()
	}))
	defer srv.Close()

	address, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	address.Scheme = "ws"
	client, err := NewClient(*address, log)
	if err != nil {
		t.Fatal(err)
	}

	received := make(chan []byte, 1)
	client.OnMessage = func(message []byte, err error) { received <- message }
	done := client.Listen()

	client.Write([]byte("ping"))
	select {
	case m := <-received:
		if string(m) != "ping" {
			t.Errorf("want echo, got %q", m)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no echo")
	}

	client.Close()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("client never shut down")
	}
}

func TestWriteNeverBlocks(t *testing.T) {
	sock := newSocket(nil, false, logger.Default())
	// nobody drains the queue; overflow must drop, not stall
	for i := 0; i < sendQueueSize*2; i++ {
		sock.Write([]byte("x"))
	}
}
