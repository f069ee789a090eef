package grpcx

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// relay.v1.RelayService is described by hand on top of well-known types:
//
//	rpc Publish(google.protobuf.Struct) returns (google.protobuf.Empty);
//	rpc History(google.protobuf.StringValue) returns (google.protobuf.Struct);
//	rpc Subscribe(google.protobuf.StringValue) returns (stream google.protobuf.Struct);
const (
	ServiceName     = "relay.v1.RelayService"
	PublishMethod   = "/" + ServiceName + "/Publish"
	HistoryMethod   = "/" + ServiceName + "/History"
	SubscribeMethod = "/" + ServiceName + "/Subscribe"
)

type RelayServer interface {
	Publish(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	History(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Subscribe(*wrapperspb.StringValue, grpc.ServerStream) error
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
		{MethodName: "History", Handler: historyHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "relay/v1/relay.proto",
}

func Register(grpcServer *grpc.Server, s RelayServer) {
	grpcServer.RegisterService(&ServiceDesc, s)
}

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PublishMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RelayServer).Publish(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func historyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).History(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: HistoryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RelayServer).History(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RelayServer).Subscribe(in, stream)
}
