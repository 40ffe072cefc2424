package control

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/internal/logging"
	"github.com/signalsfoundry/engagement-simulator/internal/observability"
	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"github.com/signalsfoundry/engagement-simulator/model"
	"github.com/signalsfoundry/engagement-simulator/timectrl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type controlTestEnv struct {
	ctx       context.Context
	session   *session.Session
	client    *Client
	conn      *grpc.ClientConn
	collector *observability.EngagementCollector
}

func newControlTestEnv(t *testing.T, opts ...session.Option) *controlTestEnv {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	opts = append([]session.Option{session.WithRandSource(halfRand{})}, opts...)
	sess, err := session.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	collector, err := observability.NewEngagementCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	server, _ := NewServer(NewService(sess, logging.Noop()), logging.Noop(), collector)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &controlTestEnv{
		ctx:       ctx,
		session:   sess,
		client:    NewClient(conn),
		conn:      conn,
		collector: collector,
	}
}

func TestGetSnapshotReturnsResetState(t *testing.T) {
	env := newControlTestEnv(t)

	snap, err := env.client.GetSnapshot(env.ctx)
	require.NoError(t, err)

	assert.Equal(t, core.PhaseStopped, snap.Phase)
	assert.Equal(t, core.MissileLaunchPoint, snap.Missile.Position)
	assert.Equal(t, "120.34", snap.Metrics.RangeDisplay)
	assert.Equal(t, "8022.47", snap.Metrics.LatencyDisplay)
	assert.Equal(t, model.ScenarioLinear, snap.Scenario)

	got := testutil.ToFloat64(env.collector.RPCRequests.WithLabelValues("EngagementService", "GetSnapshot", "OK"))
	assert.Equal(t, 1.0, got)
}

func TestCommandsDriveSession(t *testing.T) {
	env := newControlTestEnv(t, session.WithClock(time.Hour, timectrl.RealTime))

	snap, err := env.client.Engage(WithRequestID(env.ctx, "req-engage"))
	require.NoError(t, err)
	assert.True(t, snap.Playing)
	assert.Equal(t, core.PhaseRunning, snap.Phase)

	snap, err = env.client.Abort(env.ctx)
	require.NoError(t, err)
	assert.False(t, snap.Playing)
	assert.False(t, snap.BeamsVisible)

	_, err = env.session.RunHeadless(env.ctx, 40)
	require.NoError(t, err)

	snap, err = env.client.Reset(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Tick)
	assert.Equal(t, core.MissileLaunchPoint, snap.Missile.Position)
}

func TestConfigure(t *testing.T) {
	env := newControlTestEnv(t)

	target := model.TargetDrone
	night := model.EnvironmentNight
	snap, err := env.client.Configure(env.ctx, session.Update{Target: &target, Environment: &night})
	require.NoError(t, err)
	assert.Equal(t, model.TargetDrone, snap.TargetProfile.ID)
	assert.Equal(t, 7.5, snap.Target.HalfHeight)
	assert.Equal(t, 0.1, snap.Illumination)
	assert.Equal(t, model.EnvironmentNight, snap.Environment.ID)

	tooFast := 5000.0
	_, err = env.client.Configure(env.ctx, session.Update{MissileSpeed: &tooFast})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	unknown := model.EnvironmentID("rain")
	_, err = env.client.Configure(env.ctx, session.Update{Environment: &unknown})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	assert.Equal(t, model.EnvironmentNight, env.session.Settings().Environment)
}

func TestWatchSnapshotsDeliversTermination(t *testing.T) {
	env := newControlTestEnv(t, session.WithClock(time.Millisecond, timectrl.Accelerated))

	watcher, err := env.client.WatchSnapshots(env.ctx)
	require.NoError(t, err)

	first, err := watcher.Recv()
	require.NoError(t, err)
	assert.Equal(t, core.PhaseStopped, first.Phase)

	_, err = env.client.Engage(env.ctx)
	require.NoError(t, err)

	var last core.Snapshot
	for last.Phase != core.PhaseTerminated {
		last, err = watcher.Recv()
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(482), last.Tick)
	assert.False(t, last.BeamsVisible)
}

func TestWatchSnapshotsEndsWhenSessionCloses(t *testing.T) {
	env := newControlTestEnv(t)

	watcher, err := env.client.WatchSnapshots(env.ctx)
	require.NoError(t, err)
	_, err = watcher.Recv()
	require.NoError(t, err)

	require.NoError(t, env.session.Close())

	for {
		_, err = watcher.Recv()
		if err != nil {
			break
		}
	}
	assert.Equal(t, codes.Unavailable, status.Code(err))

	_, err = env.client.Engage(env.ctx)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestWatchSnapshotsDeliversCloseSnapshot(t *testing.T) {
	env := newControlTestEnv(t, session.WithClock(time.Hour, timectrl.RealTime))

	watcher, err := env.client.WatchSnapshots(env.ctx)
	require.NoError(t, err)
	_, err = watcher.Recv()
	require.NoError(t, err)

	_, err = env.client.Engage(env.ctx)
	require.NoError(t, err)
	require.NoError(t, env.session.Close())

	var last core.Snapshot
	sawRunning := false
	for {
		snap, recvErr := watcher.Recv()
		if recvErr != nil {
			err = recvErr
			break
		}
		if snap.Phase == core.PhaseRunning {
			sawRunning = true
		}
		last = snap
	}
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.True(t, sawRunning, "engage snapshot never arrived")
	assert.Equal(t, core.PhaseStopped, last.Phase, "final snapshot must be the one Close published")
}

func TestHealthService(t *testing.T) {
	env := newControlTestEnv(t)

	resp, err := healthpb.NewHealthClient(env.conn).Check(env.ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
