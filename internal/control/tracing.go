package control

import (
	"context"

	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/internal/logging"
	"github.com/signalsfoundry/engagement-simulator/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

const tracerName = "github.com/signalsfoundry/engagement-simulator/internal/control"

// Span attributes describing the engagement around an RPC.
const (
	AttrPhase       = attribute.Key("engagement.phase")
	AttrPhaseBefore = attribute.Key("engagement.phase_before")
	AttrTick        = attribute.Key("engagement.tick")
	AttrRange       = attribute.Key("engagement.range_m")
	AttrCommand     = attribute.Key("engagement.command")
)

// EngagementState is the engagement view traced RPCs report on.
type EngagementState interface {
	Snapshot() core.Snapshot
	EngagementID() string
}

// TracingUnaryServerInterceptor names the RPC span after the method and
// tags it with the engagement state the call left behind. A server span is
// started when the otelgrpc stats handler is not installed. state may be nil.
func TracingUnaryServerInterceptor(state EngagementState) grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		spanName := "Engagement/" + method
		span := trace.SpanFromContext(ctx)
		created := false
		if !span.SpanContext().IsValid() {
			ctx, span = tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer))
			created = true
		} else {
			span.SetName(spanName)
		}
		span.SetAttributes(
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
		)
		if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
			span.SetAttributes(attribute.String("request_id", reqID))
		}

		resp, err := handler(ctx, req)
		if err != nil {
			span.RecordError(err)
		}
		span.SetAttributes(engagementAttributes(ctx, state)...)

		if created {
			span.End()
		}
		return resp, err
	}
}

// engagementAttributes reports the current phase, tick and range, plus the
// active run id from the session or, failing that, from ctx.
func engagementAttributes(ctx context.Context, state EngagementState) []attribute.KeyValue {
	if state == nil {
		return nil
	}
	snap := state.Snapshot()
	attrs := []attribute.KeyValue{
		AttrPhase.String(string(snap.Phase)),
		AttrTick.Int64(int64(snap.Tick)),
		AttrRange.Float64(snap.Metrics.RangeMeters),
	}
	id := state.EngagementID()
	if id == "" {
		id = logging.EngagementIDFromContext(ctx)
	}
	if id != "" {
		attrs = append(attrs, observability.AttrEngagementID.String(id))
	}
	return attrs
}

// commandSpan traces one session command and the phase change it caused.
type commandSpan struct {
	span  trace.Span
	state EngagementState
	runID string
}

func startCommandSpan(ctx context.Context, tracer trace.Tracer, state EngagementState, name string, extra ...attribute.KeyValue) (context.Context, *commandSpan) {
	before := state.Snapshot()
	attrs := append([]attribute.KeyValue{
		AttrCommand.String(name),
		AttrPhaseBefore.String(string(before.Phase)),
	}, extra...)
	ctx, span := tracer.Start(ctx, "session."+name, trace.WithAttributes(attrs...))
	return ctx, &commandSpan{span: span, state: state, runID: state.EngagementID()}
}

// end records the outcome. An engagement id is kept from before the command
// so Abort still names the run it stopped.
func (c *commandSpan) end(ctx context.Context, err error) {
	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
	attrs := engagementAttributes(ctx, c.state)
	if c.runID != "" && c.state.EngagementID() == "" {
		attrs = append(attrs, observability.AttrEngagementID.String(c.runID))
	}
	c.span.SetAttributes(attrs...)
	c.span.End()
}
