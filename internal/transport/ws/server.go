package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/stream"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

type Relay interface {
	Publish(ctx context.Context, msg domain.Message) error
	Stream() *stream.Session
}

type Options struct {
	PingEvery time.Duration
	ReadLimit int64
}

type Server struct {
	upgrader websocket.Upgrader
	relay    Relay

	pingEvery time.Duration
	readLimit int64
}

func NewServer(relay Relay, opts Options) *Server {
	if opts.PingEvery <= 0 {
		opts.PingEvery = 15 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 64 << 10
	}
	return &Server{
		relay: relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: opts.PingEvery,
		readLimit: opts.ReadLimit,
	}
}

// WS endpoint: GET /ws?room=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")

	// subscribe before the handshake completes so the client sees
	// everything published once it is connected
	sess := s.relay.Stream().Filter(room)
	defer sess.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn)
	ctx, cancel := context.WithCancel(r.Context())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.pumpLoop(ctx, c, sess)
	}()
	go func() {
		defer wg.Done()
		s.writeLoop(ctx, c)
	}()

	slog.Debug("ws connected", "room", room, "remote", r.RemoteAddr)
	s.readLoop(ctx, c)

	cancel()
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "err", err)
	}
	wg.Wait()
	slog.Debug("ws disconnected", "room", room, "remote", r.RemoteAddr)
}

// pumpLoop forwards the session to the socket. When the relay shuts down
// the peer gets a going-away close frame.
func (s *Server) pumpLoop(ctx context.Context, c *wsConn, sess *stream.Session) {
	for msg := range sess.All(ctx) {
		if err := c.Send(chatFrame(msg)); err != nil {
			slog.Debug("ws send failed", "err", err)
			_ = c.Close()
			return
		}
	}
	if ctx.Err() == nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"),
			time.Now().Add(writeWait))
		_ = c.Close()
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	c.conn.SetReadLimit(s.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Message: "invalid json"}})
			continue
		}

		switch in.Type {
		case TypeChat:
			var msg domain.Message
			if err := json.Unmarshal(in.Payload, &msg); err != nil {
				_ = c.Send(Message{Type: TypeError, MsgID: in.MsgID, Payload: ErrorPayload{Message: "invalid payload"}})
				continue
			}
			if err := s.relay.Publish(ctx, msg); err != nil {
				slog.Warn("ws publish rejected", "room", msg.Room, "err", err)
				_ = c.Send(Message{Type: TypeError, MsgID: in.MsgID, Payload: ErrorPayload{Message: err.Error()}})
				continue
			}
			// the message itself comes back through the stream like for everyone else
			_ = c.Send(Message{Type: TypeChatAck, MsgID: in.MsgID, Payload: ChatAckPayload{Room: msg.Room}})
		default:
			// ignore
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

type wsConn struct {
	conn      *websocket.Conn
	sendMu    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn) *wsConn {
	return &wsConn{
		conn:   c,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
