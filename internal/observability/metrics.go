package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// EngagementCollector bundles Prometheus metrics for the engagement session
// and its control surface, and provides helpers to wire them into gRPC
// servers and HTTP handlers.
type EngagementCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	TicksTotal       prometheus.Counter
	TickDuration     prometheus.Histogram
	EngagementsTotal *prometheus.CounterVec
	Running          prometheus.Gauge
	RangeMeters      prometheus.Gauge
	Latency          prometheus.Gauge
	FeedSubscribers  prometheus.Gauge
}

// NewEngagementCollector registers engagement metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEngagementCollector(reg prometheus.Registerer) (*EngagementCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "control_requests_total",
		Help: "Total number of handled control-plane RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "control_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "control_request_duration_seconds",
		Help:    "Control-plane RPC latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "control_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engagement_ticks_total",
		Help: "Simulation ticks executed across all engagements.",
	}), "engagement_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engagement_tick_duration_seconds",
		Help:    "Wall-clock time spent inside one simulation tick.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.02},
	}), "engagement_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	engagements, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engagements_total",
		Help: "Engagement runs that ended, labeled by outcome.",
	}, []string{"outcome"}), "engagements_total")
	if err != nil {
		return nil, err
	}

	running, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engagement_running",
		Help: "1 while an engagement run is active, otherwise 0.",
	}), "engagement_running")
	if err != nil {
		return nil, err
	}
	rangeGauge, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engagement_range_meters",
		Help: "Missile-to-target range from the latest tick, in displayed metres.",
	}), "engagement_range_meters")
	if err != nil {
		return nil, err
	}
	latency, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engagement_latency",
		Help: "Latency readout from the latest tick (display units).",
	}), "engagement_latency")
	if err != nil {
		return nil, err
	}
	subscribers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engagement_feed_subscribers",
		Help: "Renderer connections currently attached to the snapshot feed.",
	}), "engagement_feed_subscribers")
	if err != nil {
		return nil, err
	}

	return &EngagementCollector{
		gatherer:         gatherer,
		RPCRequests:      requests,
		RPCDurations:     durations,
		TicksTotal:       ticks,
		TickDuration:     tickDuration,
		EngagementsTotal: engagements,
		Running:          running,
		RangeMeters:      rangeGauge,
		Latency:          latency,
		FeedSubscribers:  subscribers,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *EngagementCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one tick's duration and readouts.
func (c *EngagementCollector) ObserveTick(d time.Duration, rangeMeters, latency float64) {
	if c == nil {
		return
	}
	if c.TicksTotal != nil {
		c.TicksTotal.Inc()
	}
	if c.TickDuration != nil {
		c.TickDuration.Observe(d.Seconds())
	}
	if c.RangeMeters != nil {
		c.RangeMeters.Set(rangeMeters)
	}
	if c.Latency != nil {
		c.Latency.Set(latency)
	}
}

// RecordEngagement counts a finished run under its outcome label.
func (c *EngagementCollector) RecordEngagement(outcome string) {
	if c == nil || c.EngagementsTotal == nil {
		return
	}
	c.EngagementsTotal.WithLabelValues(outcome).Inc()
}

// SetRunning flips the running gauge.
func (c *EngagementCollector) SetRunning(running bool) {
	if c == nil || c.Running == nil {
		return
	}
	if running {
		c.Running.Set(1)
		return
	}
	c.Running.Set(0)
}

// SetFeedSubscribers updates the feed subscriber gauge.
func (c *EngagementCollector) SetFeedSubscribers(n int) {
	if c == nil || c.FeedSubscribers == nil {
		return
	}
	c.FeedSubscribers.Set(float64(n))
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *EngagementCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler. A nil collector serves
// the default gatherer.
func (c *EngagementCollector) Handler() http.Handler {
	var gatherer prometheus.Gatherer
	if c != nil {
		gatherer = c.gatherer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}
