package control

import (
	"context"

	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a typed client for EngagementService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithRequestID tags outgoing calls made with ctx so server logs carry id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, requestIDMetadataKey, id)
}

func (c *Client) Engage(ctx context.Context, opts ...grpc.CallOption) (core.Snapshot, error) {
	return c.invoke(ctx, EngageFullMethod, &emptypb.Empty{}, opts...)
}

func (c *Client) Abort(ctx context.Context, opts ...grpc.CallOption) (core.Snapshot, error) {
	return c.invoke(ctx, AbortFullMethod, &emptypb.Empty{}, opts...)
}

func (c *Client) Reset(ctx context.Context, opts ...grpc.CallOption) (core.Snapshot, error) {
	return c.invoke(ctx, ResetFullMethod, &emptypb.Empty{}, opts...)
}

func (c *Client) Configure(ctx context.Context, u session.Update, opts ...grpc.CallOption) (core.Snapshot, error) {
	return c.invoke(ctx, ConfigureFullMethod, UpdateToStruct(u), opts...)
}

func (c *Client) GetSnapshot(ctx context.Context, opts ...grpc.CallOption) (core.Snapshot, error) {
	return c.invoke(ctx, GetSnapshotFullMethod, &emptypb.Empty{}, opts...)
}

// SnapshotWatcher receives snapshots from WatchSnapshots.
type SnapshotWatcher struct {
	stream grpc.ClientStream
}

// Recv blocks for the next snapshot.
func (w *SnapshotWatcher) Recv() (core.Snapshot, error) {
	msg := new(structpb.Struct)
	if err := w.stream.RecvMsg(msg); err != nil {
		return core.Snapshot{}, err
	}
	return SnapshotFromStruct(msg)
}

// WatchSnapshots opens a snapshot stream. Cancel ctx to close it.
func (c *Client) WatchSnapshots(ctx context.Context, opts ...grpc.CallOption) (*SnapshotWatcher, error) {
	desc := &EngagementServiceDesc.Streams[0]
	stream, err := c.cc.NewStream(ctx, desc, WatchSnapshotsFullMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &SnapshotWatcher{stream: stream}, nil
}

func (c *Client) invoke(ctx context.Context, method string, req interface{}, opts ...grpc.CallOption) (core.Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return core.Snapshot{}, err
	}
	return SnapshotFromStruct(out)
}
