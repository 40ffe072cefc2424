package control

import (
	"github.com/signalsfoundry/engagement-simulator/internal/logging"
	"github.com/signalsfoundry/engagement-simulator/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer builds a gRPC server exposing svc plus the standard health
// service. collector may be nil. RPC spans carry engagement state when svc
// implements EngagementState.
func NewServer(svc EngagementServiceServer, log logging.Logger, collector *observability.EngagementCollector, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	state, _ := svc.(EngagementState)
	unary := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(state),
	}
	if collector != nil {
		unary = append(unary, collector.UnaryServerInterceptor())
	}

	serverOpts := append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(RequestIDStreamServerInterceptor(log)),
	}, opts...)

	server := grpc.NewServer(serverOpts...)
	RegisterEngagementServiceServer(server, svc)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)

	return server, hs
}
