package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "engagement.v1.EngagementService"

const (
	EngageFullMethod         = "/" + ServiceName + "/Engage"
	AbortFullMethod          = "/" + ServiceName + "/Abort"
	ResetFullMethod          = "/" + ServiceName + "/Reset"
	ConfigureFullMethod      = "/" + ServiceName + "/Configure"
	GetSnapshotFullMethod    = "/" + ServiceName + "/GetSnapshot"
	WatchSnapshotsFullMethod = "/" + ServiceName + "/WatchSnapshots"
)

// EngagementServiceServer is the control surface of one engagement
// session. Payloads are well-known protobuf types: commands take Empty,
// Configure takes a Struct of configuration inputs, and every reply is a
// Struct carrying a snapshot.
type EngagementServiceServer interface {
	Engage(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Abort(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Reset(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Configure(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WatchSnapshots(*emptypb.Empty, SnapshotStream) error
}

// SnapshotStream is the server side of WatchSnapshots.
type SnapshotStream interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

// RegisterEngagementServiceServer registers srv on s.
func RegisterEngagementServiceServer(s grpc.ServiceRegistrar, srv EngagementServiceServer) {
	s.RegisterService(&EngagementServiceDesc, srv)
}

// EngagementServiceDesc describes the service for grpc.Server.
var EngagementServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EngagementServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Engage",
			Handler: unaryHandler(EngageFullMethod, newEmpty, func(srv EngagementServiceServer, ctx context.Context, req proto.Message) (*structpb.Struct, error) {
				return srv.Engage(ctx, req.(*emptypb.Empty))
			}),
		},
		{
			MethodName: "Abort",
			Handler: unaryHandler(AbortFullMethod, newEmpty, func(srv EngagementServiceServer, ctx context.Context, req proto.Message) (*structpb.Struct, error) {
				return srv.Abort(ctx, req.(*emptypb.Empty))
			}),
		},
		{
			MethodName: "Reset",
			Handler: unaryHandler(ResetFullMethod, newEmpty, func(srv EngagementServiceServer, ctx context.Context, req proto.Message) (*structpb.Struct, error) {
				return srv.Reset(ctx, req.(*emptypb.Empty))
			}),
		},
		{
			MethodName: "Configure",
			Handler: unaryHandler(ConfigureFullMethod, newStruct, func(srv EngagementServiceServer, ctx context.Context, req proto.Message) (*structpb.Struct, error) {
				return srv.Configure(ctx, req.(*structpb.Struct))
			}),
		},
		{
			MethodName: "GetSnapshot",
			Handler: unaryHandler(GetSnapshotFullMethod, newEmpty, func(srv EngagementServiceServer, ctx context.Context, req proto.Message) (*structpb.Struct, error) {
				return srv.GetSnapshot(ctx, req.(*emptypb.Empty))
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchSnapshots",
			Handler:       watchSnapshotsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "engagement/v1/engagement.proto",
}

func newEmpty() proto.Message  { return new(emptypb.Empty) }
func newStruct() proto.Message { return new(structpb.Struct) }

type unaryCall func(srv EngagementServiceServer, ctx context.Context, req proto.Message) (*structpb.Struct, error)

func unaryHandler(fullMethod string, newReq func() proto.Message, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EngagementServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(EngagementServiceServer), ctx, req.(proto.Message))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchSnapshotsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(EngagementServiceServer).WatchSnapshots(in, &snapshotStream{stream})
}

type snapshotStream struct {
	grpc.ServerStream
}

func (x *snapshotStream) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}
