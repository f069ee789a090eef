// Package stream turns a broadcast receiver into one subscriber's live,
// cancelable sequence of messages.
package stream

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/chat-relay/internal/broadcast"
	"github.com/cwrk-planet/chat-relay/internal/domain"
)

// Session owns one receiver. It yields every message published after Open
// until the context is canceled, Close is called or the hub shuts down.
type Session struct {
	rx     *broadcast.Receiver[domain.Message]
	room   string
	log    *slog.Logger
	closed sync.Once
}

// Open subscribes to hub. The session starts at "now": nothing published
// before Open is replayed.
func Open(hub *broadcast.Broadcaster[domain.Message], log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{rx: hub.Subscribe(), log: log}
}

// Filter restricts the session to one room. An empty room keeps every
// message. It must be called before the first Next.
func (s *Session) Filter(room string) *Session {
	s.room = room
	return s
}

// Next blocks for the next message. The boolean is false once the stream
// has ended; that is a normal end of stream, not a failure.
func (s *Session) Next(ctx context.Context) (domain.Message, bool) {
	for {
		msg, err := s.rx.Recv(ctx)
		switch {
		case err == nil:
			if s.room != "" && msg.Room != s.room {
				continue
			}
			return msg, true
		case errors.Is(err, broadcast.ErrLagged):
			s.log.Debug("stream lagged, skipping ahead", "err", err)
			continue
		default:
			// closed hub or canceled ctx
			s.Close()
			return domain.Message{}, false
		}
	}
}

// All returns the session as a lazy sequence. The receiver is released when
// the sequence ends or the consumer stops iterating.
func (s *Session) All(ctx context.Context) iter.Seq[domain.Message] {
	return func(yield func(domain.Message) bool) {
		defer s.Close()
		for {
			msg, ok := s.Next(ctx)
			if !ok || !yield(msg) {
				return
			}
		}
	}
}

// Close releases the receiver. Other sessions are not affected.
func (s *Session) Close() {
	s.closed.Do(s.rx.Close)
}
