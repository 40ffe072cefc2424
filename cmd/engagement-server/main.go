package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/internal/config"
	"github.com/signalsfoundry/engagement-simulator/internal/control"
	"github.com/signalsfoundry/engagement-simulator/internal/feed"
	"github.com/signalsfoundry/engagement-simulator/internal/logging"
	"github.com/signalsfoundry/engagement-simulator/internal/observability"
	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

// listeners are the sockets the server binds. A nil metrics listener
// disables the /metrics endpoint.
type listeners struct {
	grpc    net.Listener
	feed    net.Listener
	metrics net.Listener
}

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := listen(cfg.Server)
	if err != nil {
		log.Error(ctx, "failed to bind listeners", logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "engagement server exited", logging.Err(err))
		os.Exit(1)
	}
}

func listen(srv config.Server) (listeners, error) {
	var lis listeners
	var err error
	if lis.grpc, err = net.Listen("tcp", srv.GRPCAddr); err != nil {
		return lis, fmt.Errorf("grpc listener %s: %w", srv.GRPCAddr, err)
	}
	if lis.feed, err = net.Listen("tcp", srv.FeedAddr); err != nil {
		lis.grpc.Close()
		return lis, fmt.Errorf("feed listener %s: %w", srv.FeedAddr, err)
	}
	if srv.MetricsAddr != "" {
		if lis.metrics, err = net.Listen("tcp", srv.MetricsAddr); err != nil {
			lis.grpc.Close()
			lis.feed.Close()
			return lis, fmt.Errorf("metrics listener %s: %w", srv.MetricsAddr, err)
		}
	}
	return lis, nil
}

// run hosts one session until ctx is cancelled or a server fails.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, lis listeners) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.TracingConfig(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewEngagementCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	clockMode, err := cfg.ClockMode()
	if err != nil {
		return err
	}
	sess, err := session.New(
		session.WithLogger(log),
		session.WithMetricsRecorder(collector),
		session.WithSettings(cfg.Settings()),
		session.WithClock(cfg.Simulation.TickPeriod, clockMode),
		session.WithRandSource(core.NewRandSource(cfg.Simulation.Seed)),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer sess.Close()

	hub := feed.NewHub(
		feed.WithLogger(log),
		feed.WithCommander(sess),
		feed.WithSubscriberGauge(collector),
	)
	defer hub.Close()
	unsubscribe := sess.Subscribe(func(snap core.Snapshot) {
		_ = hub.Publish(snap)
	})
	defer unsubscribe()
	_ = hub.Publish(sess.Snapshot())

	grpcServer, healthServer := control.NewServer(control.NewService(sess, log), log, collector)

	feedMux := http.NewServeMux()
	feedMux.Handle("/feed", hub)
	feedMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	feedSrv := &http.Server{Handler: feedMux, ReadHeaderTimeout: 5 * time.Second}

	var metricsSrv *http.Server
	if lis.metrics != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}
	}

	errCh := make(chan error, 3)
	serve := func(name string, fn func() error) {
		go func() {
			if err := fn(); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("%s server: %w", name, err)
			}
		}()
	}

	log.Info(ctx, "starting engagement control server", logging.String("addr", lis.grpc.Addr().String()))
	serve("grpc", func() error { return grpcServer.Serve(lis.grpc) })
	log.Info(ctx, "serving renderer feed", logging.String("addr", lis.feed.Addr().String()))
	serve("feed", func() error { return feedSrv.Serve(lis.feed) })
	if metricsSrv != nil {
		log.Info(ctx, "serving Prometheus metrics", logging.String("addr", lis.metrics.Addr().String()))
		serve("metrics", func() error { return metricsSrv.Serve(lis.metrics) })
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	log.Info(context.Background(), "shutting down engagement server")
	healthServer.Shutdown()

	// Closing the session ends open snapshot streams so GracefulStop can
	// drain.
	_ = hub.Close()
	_ = sess.Close()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := feedSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "feed server shutdown", logging.Err(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "metrics server shutdown", logging.Err(err))
		}
	}
	return runErr
}
