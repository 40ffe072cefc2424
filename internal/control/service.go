package control

import (
	"context"

	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/internal/logging"
	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultWatchBuffer is the per-stream snapshot backlog. When it is full the
// oldest queued snapshot is dropped.
const DefaultWatchBuffer = 64

// Service implements EngagementServiceServer on top of a session.
//
// Semantics:
//   - Engage, Abort and Reset delegate to the session and reply with the
//     snapshot taken right after the command.
//   - Configure applies all fields atomically or none of them.
//   - WatchSnapshots sends the current snapshot, then every published one
//     until the client goes away or the session closes. A slow client
//     loses intermediate snapshots rather than stalling the tick loop, but
//     always receives the latest one.
type Service struct {
	session     *session.Session
	log         logging.Logger
	tracer      trace.Tracer
	watchBuffer int
}

// NewService constructs a Service bound to s.
func NewService(s *session.Session, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{
		session:     s,
		log:         log,
		tracer:      otel.Tracer(tracerName),
		watchBuffer: DefaultWatchBuffer,
	}
}

// Snapshot returns the session's current snapshot.
func (s *Service) Snapshot() core.Snapshot {
	if s.ensureReady() != nil {
		return core.Snapshot{}
	}
	return s.session.Snapshot()
}

// EngagementID returns the id of the session's active run.
func (s *Service) EngagementID() string {
	if s.ensureReady() != nil {
		return ""
	}
	return s.session.EngagementID()
}

func (s *Service) Engage(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(ctx, "Engage", s.session.Engage)
}

func (s *Service) Abort(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(ctx, "Abort", s.session.Abort)
}

func (s *Service) Reset(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(ctx, "Reset", s.session.Reset)
}

// Configure applies a partial configuration update.
func (s *Service) Configure(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	update, err := UpdateFromStruct(req)
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := startCommandSpan(ctx, s.tracer, s, "Apply", attribute.Int("configure.fields", len(req.GetFields())))
	err = s.session.Apply(ctx, update)
	span.end(ctx, err)
	if err != nil {
		s.logger(ctx).Warn(ctx, "configure rejected", logging.Err(err))
		return nil, ToStatusError(err)
	}
	return s.reply()
}

func (s *Service) GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return s.reply()
}

// WatchSnapshots streams snapshots to the caller.
func (s *Service) WatchSnapshots(_ *emptypb.Empty, stream SnapshotStream) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx := stream.Context()

	ch := make(chan core.Snapshot, s.watchBuffer)
	unsubscribe := s.session.Subscribe(func(snap core.Snapshot) {
		offerLatest(ch, snap)
	})
	defer unsubscribe()

	if err := s.send(stream, s.session.Snapshot()); err != nil {
		return err
	}

	log := s.logger(ctx)
	log.Debug(ctx, "snapshot watch started")
	for {
		select {
		case <-ctx.Done():
			log.Debug(ctx, "snapshot watch ended", logging.String("reason", ctx.Err().Error()))
			return nil
		case <-s.session.Done():
			// Close publishes its final snapshot before Done fires.
			if err := s.drain(stream, ch); err != nil {
				return err
			}
			return status.Error(codes.Unavailable, session.ErrClosed.Error())
		case snap := <-ch:
			if err := s.send(stream, snap); err != nil {
				return err
			}
		}
	}
}

func (s *Service) command(ctx context.Context, name string, fn func(context.Context) error) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, span := startCommandSpan(ctx, s.tracer, s, name)
	err := fn(ctx)
	span.end(ctx, err)
	if err != nil {
		s.logger(ctx).Warn(ctx, "command failed", logging.String("command", name), logging.Err(err))
		return nil, ToStatusError(err)
	}
	s.logger(ctx).Info(ctx, "command applied", logging.String("command", name))
	return s.reply()
}

func (s *Service) reply() (*structpb.Struct, error) {
	out, err := SnapshotToStruct(s.session.Snapshot())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Service) send(stream SnapshotStream, snap core.Snapshot) error {
	msg, err := SnapshotToStruct(snap)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.Send(msg)
}

// drain sends whatever is still queued on ch.
func (s *Service) drain(stream SnapshotStream, ch chan core.Snapshot) error {
	for {
		select {
		case snap := <-ch:
			if err := s.send(stream, snap); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *Service) ensureReady() error {
	if s == nil || s.session == nil {
		return status.Error(codes.FailedPrecondition, "engagement session is not configured")
	}
	return nil
}

func (s *Service) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

// offerLatest queues snap without blocking, evicting the oldest entry when
// ch is full. It must have a single sender.
func offerLatest(ch chan core.Snapshot, snap core.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
