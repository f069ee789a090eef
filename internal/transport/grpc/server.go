package grpcx

import (
	"context"
	"log/slog"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/stream"
	"github.com/cwrk-planet/chat-relay/pkg/errs"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Relay interface {
	Publish(ctx context.Context, msg domain.Message) error
	History(room string) domain.RoomMessages
	Stream() *stream.Session
}

type Server struct {
	relay Relay
}

func NewServer(relay Relay) *Server {
	return &Server{relay: relay}
}

func (s *Server) Publish(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	msg, err := structToMessage(in)
	if err != nil {
		return nil, errs.ToGRPC(err)
	}
	if err := s.relay.Publish(ctx, msg); err != nil {
		return nil, errs.ToGRPC(err)
	}
	return &emptypb.Empty{}, nil
}

// History takes the room name; an unknown room yields an empty list.
func (s *Server) History(_ context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	return historyToStruct(s.relay.History(in.GetValue())), nil
}

// Subscribe streams messages until the client goes away or the relay
// shuts down. A non-empty value filters by room.
func (s *Server) Subscribe(in *wrapperspb.StringValue, stream grpc.ServerStream) error {
	sess := s.relay.Stream().Filter(in.GetValue())
	defer sess.Close()

	for msg := range sess.All(stream.Context()) {
		if err := stream.SendMsg(messageToStruct(msg)); err != nil {
			slog.Debug("grpc subscribe send failed", "err", err)
			return err
		}
	}
	return nil
}
