package websocket

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/peerdrop/relay/pkg/logger"
)

const (
	maxMessageSize = 16 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
	// sendQueueSize bounds the outbound queue; when the queue is full
	// the message is dropped instead of stalling the sender.
	sendQueueSize = 64
)

type WS struct {
	conn     *websocket.Conn
	send     chan []byte
	once     sync.Once
	doneOnce sync.Once
	log      *logger.Logger

	OnMessage MessageHandler

	pingPong bool

	shutdown *sync.WaitGroup
	Done     chan struct{}
}

type MessageHandler func(message []byte, err error)

var DefaultUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
}

func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return DefaultUpgrader.Upgrade(w, r, nil)
}

// NewServer wraps an upgraded server-side connection.
// Server connections ping their peers and expect pongs back.
func NewServer(conn *websocket.Conn, log *logger.Logger) *WS { return newSocket(conn, true, log) }

// NewClient dials the address and wraps the resulting connection.
func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	shut := sync.WaitGroup{}
	shut.Add(2)
	ws := &WS{
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		log:      log,
		pingPong: pingPong,
		shutdown: &shut,
		Done:     make(chan struct{}, 1),
	}
	return ws
}

// Listen starts the read/write pumps and returns the Done channel.
func (ws *WS) Listen() chan struct{} {
	go ws.writer()
	go ws.reader()
	return ws.Done
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		close(ws.send)
		ws.shutdown.Done()
		ws.close()
	}()
	ws.conn.SetReadLimit(maxMessageSize)
	if ws.pingPong {
		_ = ws.conn.SetReadDeadline(time.Now().Add(pongTime))
		ws.conn.SetPongHandler(func(string) error { _ = ws.conn.SetReadDeadline(time.Now().Add(pongTime)); return nil })
	}
	for {
		_, message, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				ws.log.Error().Err(err).Msg("ws read fail")
			}
			break
		}
		ws.OnMessage(message, err)
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Serializes all websocket writes.
func (ws *WS) writer() {
	var ticker *time.Ticker
	if ws.pingPong {
		ticker = time.NewTicker(pingTime)
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		ws.shutdown.Done()
		ws.close()
	}()
	if ws.pingPong {
		for {
			select {
			case message, ok := <-ws.send:
				if !ws.handleMessage(message, ok) {
					return
				}
			case <-ticker.C:
				if err := ws.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
	for message := range ws.send {
		if !ws.handleMessage(message, true) {
			return
		}
	}
	_ = ws.write(websocket.CloseMessage, []byte{})
}

// write pushes one frame under a fresh write deadline.
func (ws *WS) write(t int, message []byte) error {
	_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.conn.WriteMessage(t, message)
}

func (ws *WS) handleMessage(message []byte, ok bool) bool {
	if !ok {
		_ = ws.write(websocket.CloseMessage, []byte{})
		return false
	}
	if err := ws.write(websocket.TextMessage, message); err != nil {
		return false
	}
	return true
}

// Write queues the message for a send.
// It never blocks: when the peer is stuck and its queue is full,
// the message is dropped.
func (ws *WS) Write(data []byte) {
	defer func() {
		// the send channel may be closed concurrently with a write
		_ = recover()
	}()
	select {
	case ws.send <- data:
	default:
		ws.log.Warn().Msg("slow ws consumer, message dropped")
	}
}

func (ws *WS) Close() { ws.once.Do(func() { _ = ws.write(websocket.CloseMessage, []byte{}) }) }

func (ws *WS) close() {
	ws.shutdown.Wait()
	ws.doneOnce.Do(func() {
		_ = ws.conn.Close()
		close(ws.Done)
	})
}
