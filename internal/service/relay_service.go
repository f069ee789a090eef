package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/chat-relay/internal/broadcast"
	"github.com/cwrk-planet/chat-relay/internal/cache"
	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/stream"
	"github.com/cwrk-planet/chat-relay/pkg/errs"

	"github.com/go-playground/validator/v10"
)

// RelayService ties the room cache and the broadcaster together. Both are
// process-wide singletons injected at startup.
type RelayService struct {
	cache    *cache.Cache
	hub      *broadcast.Broadcaster[domain.Message]
	validate *validator.Validate
	log      *slog.Logger
}

func NewRelayService(c *cache.Cache, hub *broadcast.Broadcaster[domain.Message], log *slog.Logger) *RelayService {
	if log == nil {
		log = slog.Default()
	}
	return &RelayService{
		cache:    c,
		hub:      hub,
		validate: validator.New(),
		log:      log,
	}
}

// Validate checks field lengths (sender ≤ 20, room ≤ 30 characters).
func (s *RelayService) Validate(msg domain.Message) error {
	if err := s.validate.Struct(msg); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	return nil
}

// Publish records msg in the room history, then fans it out to live
// streams. Only validation can fail; having no subscribers is not an error.
func (s *RelayService) Publish(ctx context.Context, msg domain.Message) error {
	if err := s.Validate(msg); err != nil {
		return err
	}

	s.cache.Append(msg)
	delivered := s.hub.Publish(msg)

	s.log.DebugContext(ctx, "message published",
		"room", msg.Room, "sender", msg.Sender, "subscribers", delivered)
	return nil
}

// History returns the recent messages of room, oldest first.
func (s *RelayService) History(room string) domain.RoomMessages {
	return domain.RoomMessages{
		Name:     room,
		Messages: s.cache.Get(room),
	}
}

// Stream opens a live session starting at the current point of the stream.
// The caller must Close it (or let its context end it).
func (s *RelayService) Stream() *stream.Session {
	return stream.Open(s.hub, s.log)
}

// Subscribers is the number of open streams.
func (s *RelayService) Subscribers() int { return s.hub.Receivers() }

// Rooms is the number of rooms with history.
func (s *RelayService) Rooms() int { return s.cache.Rooms() }

// Close ends every open stream. Publishing afterwards still updates history.
func (s *RelayService) Close() {
	s.hub.Close()
	s.log.Info("relay closed", "rooms", s.cache.Rooms())
}
