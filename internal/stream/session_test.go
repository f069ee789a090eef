package stream

import (
	"context"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/broadcast"
	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/stretchr/testify/require"
)

func message(room, content string) domain.Message {
	return domain.Message{Sender: "bob", Room: room, Content: content, CreatedAt: "now"}
}

func nextWithin(s *Session, d time.Duration) (domain.Message, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return s.Next(ctx)
}

func TestSession_YieldsInPublishOrder(t *testing.T) {
	req := require.New(t)
	hub := broadcast.New[domain.Message](16)
	s := Open(hub, nil)
	defer s.Close()

	for _, c := range []string{"one", "two", "three"} {
		hub.Publish(message("a", c))
	}

	for _, want := range []string{"one", "two", "three"} {
		got, ok := nextWithin(s, time.Second)
		req.True(ok)
		req.Equal(want, got.Content)
	}
}

func TestSession_LaterSessionDoesNotReplay(t *testing.T) {
	req := require.New(t)
	hub := broadcast.New[domain.Message](16)
	first := Open(hub, nil)
	defer first.Close()

	m := message("a", "hello")
	hub.Publish(m)

	second := Open(hub, nil)
	defer second.Close()

	got, ok := nextWithin(first, time.Second)
	req.True(ok)
	req.Equal(m, got)

	_, ok = nextWithin(second, 20*time.Millisecond)
	req.False(ok)
}

func TestSession_SkipsLagSilently(t *testing.T) {
	req := require.New(t)
	hub := broadcast.New[domain.Message](2)
	s := Open(hub, nil)
	defer s.Close()

	for _, c := range []string{"a", "b", "c", "d", "e"} {
		hub.Publish(message("r", c))
	}

	got, ok := nextWithin(s, time.Second)
	req.True(ok)
	req.Equal("d", got.Content)
	got, ok = nextWithin(s, time.Second)
	req.True(ok)
	req.Equal("e", got.Content)
}

func TestSession_EndsOnHubClose(t *testing.T) {
	hub := broadcast.New[domain.Message](4)
	s := Open(hub, nil)

	hub.Close()
	_, ok := nextWithin(s, time.Second)
	require.False(t, ok)
	require.Equal(t, 0, hub.Receivers())
}

func TestSession_CancelStopsOnlyThatStream(t *testing.T) {
	req := require.New(t)
	hub := broadcast.New[domain.Message](16)
	canceled := Open(hub, nil)
	active := Open(hub, nil)
	defer active.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var yielded []domain.Message
	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := range canceled.All(ctx) {
			yielded = append(yielded, m)
		}
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("canceled stream did not end")
	}

	hub.Publish(message("a", "after-cancel"))
	req.Empty(yielded)
	req.Equal(1, hub.Receivers())

	got, ok := nextWithin(active, time.Second)
	req.True(ok)
	req.Equal("after-cancel", got.Content)
}

func TestSession_AllReleasesOnEarlyBreak(t *testing.T) {
	req := require.New(t)
	hub := broadcast.New[domain.Message](4)
	s := Open(hub, nil)

	hub.Publish(message("a", "x"))
	hub.Publish(message("a", "y"))

	for m := range s.All(context.Background()) {
		req.Equal("x", m.Content)
		break
	}
	req.Equal(0, hub.Receivers())
}

func TestSession_FilterByRoom(t *testing.T) {
	req := require.New(t)
	hub := broadcast.New[domain.Message](8)
	s := Open(hub, nil).Filter("b")
	defer s.Close()

	hub.Publish(message("a", "skip"))
	hub.Publish(message("b", "keep"))

	got, ok := nextWithin(s, time.Second)
	req.True(ok)
	req.Equal("keep", got.Content)
}
