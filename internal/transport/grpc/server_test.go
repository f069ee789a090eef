package grpcx

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/broadcast"
	"github.com/cwrk-planet/chat-relay/internal/cache"
	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func startServer(t *testing.T) (*service.RelayService, *Client) {
	t.Helper()

	relay := service.NewRelayService(cache.New(0), broadcast.New[domain.Message](64), nil)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	Register(s, NewServer(relay))
	go func() { _ = s.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		relay.Close()
		s.Stop()
	})
	return relay, NewClient(conn)
}

func TestPublishThenHistory(t *testing.T) {
	_, c := startServer(t)
	ctx := t.Context()

	msg := domain.Message{Sender: "alice", Room: "lobby", Content: "hi", CreatedAt: "2024-01-01T00:00:00Z"}
	require.NoError(t, c.Publish(ctx, msg))

	h, err := c.History(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, "lobby", h.Name)
	assert.Equal(t, []domain.Message{msg}, h.Messages)
}

func TestHistoryUnknownRoomIsEmpty(t *testing.T) {
	_, c := startServer(t)

	h, err := c.History(t.Context(), "nowhere")
	require.NoError(t, err)
	assert.Equal(t, "nowhere", h.Name)
	assert.Empty(t, h.Messages)
}

func TestPublishInvalidArgument(t *testing.T) {
	_, c := startServer(t)

	err := c.Publish(t.Context(), domain.Message{Sender: strings.Repeat("a", 21), Room: "r"})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPublishRejectsNonStringField(t *testing.T) {
	_, c := startServer(t)

	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"sender": structpb.NewNumberValue(42),
	}}
	err := c.cc.Invoke(t.Context(), PublishMethod, in, new(emptypb.Empty))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSubscribeReceivesFilteredMessages(t *testing.T) {
	relay, c := startServer(t)
	ctx := t.Context()

	sub, err := c.Subscribe(ctx, "lobby")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return relay.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Publish(ctx, domain.Message{Sender: "a", Room: "other", Content: "skip"}))
	require.NoError(t, c.Publish(ctx, domain.Message{Sender: "a", Room: "lobby", Content: "one"}))

	got, err := sub.Recv()
	require.NoError(t, err)
	assert.Equal(t, "one", got.Content)
	assert.Equal(t, "lobby", got.Room)
}

func TestSubscribeEndsOnRelayClose(t *testing.T) {
	relay, c := startServer(t)

	sub, err := c.Subscribe(t.Context(), "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return relay.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	relay.Close()

	_, err = sub.Recv()
	assert.True(t, errors.Is(err, io.EOF), "got %v", err)
}

func TestSubscribeCancelReleasesStream(t *testing.T) {
	relay, c := startServer(t)

	ctx, cancel := context.WithCancel(t.Context())
	_, err := c.Subscribe(ctx, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return relay.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool { return relay.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}
