package control

import (
	"context"
	"testing"
	"time"

	"github.com/signalsfoundry/engagement-simulator/internal/logging"
	"github.com/signalsfoundry/engagement-simulator/internal/observability"
	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"github.com/signalsfoundry/engagement-simulator/timectrl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

func newTracedService(t *testing.T) (*Service, *sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sess, err := session.New(
		session.WithRandSource(halfRand{}),
		session.WithClock(time.Hour, timectrl.RealTime),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	svc := NewService(sess, logging.Noop())
	svc.tracer = tp.Tracer("control-test")
	return svc, tp, rec
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func endedSpan(t *testing.T, rec *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range rec.Ended() {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("no ended span named %q", name)
	return nil
}

func TestCommandSpansCarryPhaseAndEngagement(t *testing.T) {
	svc, _, rec := newTracedService(t)
	ctx := context.Background()

	_, err := svc.Engage(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	runID := svc.EngagementID()
	require.NotEmpty(t, runID)

	_, err = svc.Abort(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Empty(t, svc.EngagementID())

	engage := spanAttrs(endedSpan(t, rec, "session.Engage"))
	assert.Equal(t, "Engage", engage[AttrCommand].AsString())
	assert.Equal(t, "stopped", engage[AttrPhaseBefore].AsString())
	assert.Equal(t, "running", engage[AttrPhase].AsString())
	assert.Equal(t, runID, engage[observability.AttrEngagementID].AsString())

	abort := spanAttrs(endedSpan(t, rec, "session.Abort"))
	assert.Equal(t, "running", abort[AttrPhaseBefore].AsString())
	assert.Equal(t, "stopped", abort[AttrPhase].AsString())
	assert.Equal(t, runID, abort[observability.AttrEngagementID].AsString(), "abort span names the run it stopped")
}

func TestTracingInterceptorTagsEngagementState(t *testing.T) {
	svc, tp, rec := newTracedService(t)
	interceptor := TracingUnaryServerInterceptor(svc)

	ctx, rpcSpan := tp.Tracer("grpc-test").Start(context.Background(), "rpc")
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/Engage"}
	_, err := interceptor(ctx, &emptypb.Empty{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return svc.Engage(ctx, req.(*emptypb.Empty))
	})
	require.NoError(t, err)
	rpcSpan.End()

	span := endedSpan(t, rec, "Engagement/Engage")
	attrs := spanAttrs(span)
	assert.Equal(t, "Engage", attrs[attribute.Key("rpc.method")].AsString())
	assert.Equal(t, "running", attrs[AttrPhase].AsString())
	assert.Equal(t, int64(0), attrs[AttrTick].AsInt64())
	assert.InDelta(t, 120.34, attrs[AttrRange].AsFloat64(), 0.01)
	assert.Equal(t, svc.EngagementID(), attrs[observability.AttrEngagementID].AsString())
}

func TestTracingInterceptorWithoutState(t *testing.T) {
	interceptor := TracingUnaryServerInterceptor(nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/GetSnapshot"}
	resp, err := interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
