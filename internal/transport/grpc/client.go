package grpcx

import (
	"context"
	"errors"
	"io"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a typed wrapper over a connection to RelayService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Publish(ctx context.Context, msg domain.Message, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, PublishMethod, messageToStruct(msg), new(emptypb.Empty), opts...)
}

func (c *Client) History(ctx context.Context, room string, opts ...grpc.CallOption) (domain.RoomMessages, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, HistoryMethod, wrapperspb.String(room), out, opts...); err != nil {
		return domain.RoomMessages{}, err
	}
	return structToHistory(out)
}

// Subscription receives messages from a Subscribe stream.
type Subscription struct {
	stream grpc.ClientStream
}

// Subscribe opens a stream; room may be empty for every room.
func (c *Client) Subscribe(ctx context.Context, room string, opts ...grpc.CallOption) (*Subscription, error) {
	cs, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], SubscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(wrapperspb.String(room)); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &Subscription{stream: cs}, nil
}

// Recv returns io.EOF once the server ends the stream.
func (s *Subscription) Recv() (domain.Message, error) {
	out := new(structpb.Struct)
	if err := s.stream.RecvMsg(out); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Message{}, io.EOF
		}
		return domain.Message{}, err
	}
	return structToMessage(out)
}
