// Package session owns a single engagement: the guidance kernel, the clock
// that drives it, the active configuration and the subscribers that render
// its snapshots.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/internal/logging"
	"github.com/signalsfoundry/engagement-simulator/internal/observability"
	"github.com/signalsfoundry/engagement-simulator/kb"
	"github.com/signalsfoundry/engagement-simulator/model"
	"github.com/signalsfoundry/engagement-simulator/timectrl"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/signalsfoundry/engagement-simulator/internal/sim/session"

// Re-export configuration sentinel errors so transports can depend on
// session.* alone.
var (
	// ErrClosed is returned by every command issued after Close.
	ErrClosed = errors.New("session closed")
	// ErrUnknownTarget indicates a target profile id missing from the catalog.
	ErrUnknownTarget = kb.ErrUnknownTarget
	// ErrUnknownEnvironment indicates an environment id missing from the catalog.
	ErrUnknownEnvironment = kb.ErrUnknownEnvironment
	// ErrUnknownScenario indicates an unsupported scenario kind.
	ErrUnknownScenario = model.ErrUnknownScenario
	// ErrOutOfRange indicates a speed or illumination outside its range.
	ErrOutOfRange = model.ErrOutOfRange
)

// Outcome labels how an engagement run ended.
type Outcome string

const (
	OutcomeTerminated Outcome = "terminated"
	OutcomeAborted    Outcome = "aborted"
	OutcomeReset      Outcome = "reset"
	OutcomeClosed     Outcome = "closed"
	// OutcomeIncomplete marks a headless run that hit its tick budget.
	OutcomeIncomplete Outcome = "incomplete"
)

// MetricsRecorder receives per-tick readouts and run lifecycle events.
type MetricsRecorder interface {
	ObserveTick(d time.Duration, rangeMeters, latency float64)
	RecordEngagement(outcome string)
	SetRunning(running bool)
}

// Update is a partial configuration change. Nil fields are left alone.
type Update struct {
	MissileSpeed *float64
	TargetSpeed  *float64
	Scenario     *model.ScenarioKind
	Target       *model.TargetID
	Environment  *model.EnvironmentID
	// Illumination wins over the preset seed when Environment is set in the
	// same update.
	Illumination *float64
}

// Report summarises a headless run.
type Report struct {
	Outcome            Outcome
	Ticks              uint64
	ElapsedTime        float64
	ClosestRangeMeters float64
	Final              core.Snapshot
}

// Option customises Session construction.
type Option func(*Session)

// WithLogger sets the base logger. Nil keeps the noop logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithCatalog replaces the built-in target and environment catalog.
func WithCatalog(c *kb.Catalog) Option {
	return func(s *Session) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithSettings sets the initial configuration inputs.
func WithSettings(settings model.Settings) Option {
	return func(s *Session) {
		s.settings = settings
	}
}

// WithClock sets the tick period and pacing mode of the run loop.
func WithClock(tick time.Duration, mode timectrl.Mode) Option {
	return func(s *Session) {
		s.tick = tick
		s.mode = mode
	}
}

// WithRandSource injects the beam flicker source.
func WithRandSource(r core.RandSource) Option {
	return func(s *Session) {
		s.rand = r
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Session) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// Session is safe for concurrent use. Commands are serialised; each tick
// runs to completion under the state lock, so configuration changes land
// between ticks and are read at the start of the next one.
type Session struct {
	// cmdMu serialises commands. The tick loop never takes it, so commands
	// may wait on the clock while holding it.
	cmdMu sync.Mutex

	mu         sync.Mutex
	catalog    *kb.Catalog
	engine     *core.Engine
	settings   model.Settings
	trajectory core.TrajectoryModel
	env        model.EnvironmentPreset
	subs       map[uint64]func(core.Snapshot)
	nextSub    uint64
	closed     bool
	run        *runScope

	clock  *timectrl.TimeController
	tick   time.Duration
	mode   timectrl.Mode
	ctx    context.Context
	cancel context.CancelFunc

	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
	rand    core.RandSource
}

// runScope is the bookkeeping of the active engagement run.
type runScope struct {
	id    string
	ctx   context.Context
	log   logging.Logger
	span  trace.Span
	ticks uint64
}

// New builds a stopped session in its reset state.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		catalog:  kb.Default(),
		settings: model.DefaultSettings(),
		subs:     make(map[uint64]func(core.Snapshot)),
		tick:     timectrl.DefaultTick,
		mode:     timectrl.RealTime,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}

	if err := model.MissileSpeedRange.Check(s.settings.MissileSpeed); err != nil {
		return nil, err
	}
	if err := model.TargetSpeedRange.Check(s.settings.TargetSpeed); err != nil {
		return nil, err
	}
	if err := model.IlluminationRange.Check(s.settings.Illumination); err != nil {
		return nil, err
	}
	kind, err := model.ParseScenarioKind(string(s.settings.Scenario))
	if err != nil {
		return nil, err
	}
	s.settings.Scenario = kind

	profile, trajectory, env, err := s.resolve(s.settings)
	if err != nil {
		return nil, err
	}
	s.trajectory = trajectory
	s.env = env
	s.engine = core.NewEngine(profile, core.WithRandSource(s.rand))
	s.clock = timectrl.NewTimeController(s.tick, s.mode)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

func (s *Session) resolve(settings model.Settings) (model.TargetProfile, core.TrajectoryModel, model.EnvironmentPreset, error) {
	profile, err := s.catalog.Target(settings.Target)
	if err != nil {
		return model.TargetProfile{}, nil, model.EnvironmentPreset{}, err
	}
	trajectory, err := core.NewTrajectory(settings.Scenario)
	if err != nil {
		return model.TargetProfile{}, nil, model.EnvironmentPreset{}, err
	}
	env, err := s.catalog.Environment(settings.Environment)
	if err != nil {
		return model.TargetProfile{}, nil, model.EnvironmentPreset{}, err
	}
	return profile, trajectory, env, nil
}

// Engage starts a run. Engaging while running is a no-op; engaging after a
// terminated run resets the entities first so the new run is a fresh
// engagement.
func (s *Session) Engage(ctx context.Context) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.engine.Playing() {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// Reap a loop that is still winding down after termination.
	s.clock.Stop()

	s.mu.Lock()
	if s.engine.Terminated() {
		s.engine.Reset(s.engine.Profile())
	}
	s.engine.Engage()
	s.beginRunLocked(ctx)
	s.publishLocked(s.engine.Snapshot(s.inputsLocked()))
	s.run.log.Debug(s.run.ctx, "clock starting",
		logging.String("mode", s.mode.String()),
		logging.String("tick", s.tick.String()),
	)
	s.mu.Unlock()

	if err := s.clock.Start(s.ctx, s.onTick); err != nil {
		s.mu.Lock()
		s.engine.Abort()
		snap := s.engine.Snapshot(s.inputsLocked())
		s.endRunLocked(OutcomeAborted, snap)
		s.publishLocked(snap)
		s.mu.Unlock()
		return fmt.Errorf("start clock: %w", err)
	}
	return nil
}

// Abort stops the active run. The tick in flight, if any, is the last one.
func (s *Session) Abort(ctx context.Context) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.engine.Abort() {
		s.mu.Unlock()
		return nil
	}
	snap := s.engine.Snapshot(s.inputsLocked())
	s.endRunLocked(OutcomeAborted, snap)
	s.publishLocked(snap)
	s.mu.Unlock()

	s.clock.Stop()
	s.log.Debug(ctx, "clock stopped", logging.String("reason", string(OutcomeAborted)))
	return nil
}

// Reset returns both entities to their launch positions and stops the run.
func (s *Session) Reset(ctx context.Context) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.resetLocked(ctx, s.engine.Profile())
	s.mu.Unlock()

	s.clock.Stop()
	return nil
}

// Apply validates and applies a partial configuration change atomically.
// Nothing changes when any field is invalid. A scenario or target change
// resets the engagement; an environment selection reseeds illumination.
func (s *Session) Apply(ctx context.Context, u Update) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	next := s.settings
	if u.MissileSpeed != nil {
		if err := model.MissileSpeedRange.Check(*u.MissileSpeed); err != nil {
			s.mu.Unlock()
			return err
		}
		next.MissileSpeed = *u.MissileSpeed
	}
	if u.TargetSpeed != nil {
		if err := model.TargetSpeedRange.Check(*u.TargetSpeed); err != nil {
			s.mu.Unlock()
			return err
		}
		next.TargetSpeed = *u.TargetSpeed
	}
	if u.Scenario != nil {
		kind, err := model.ParseScenarioKind(string(*u.Scenario))
		if err != nil {
			s.mu.Unlock()
			return err
		}
		next.Scenario = kind
	}
	if u.Target != nil {
		next.Target = *u.Target
	}
	if u.Environment != nil {
		next.Environment = *u.Environment
	}
	profile, trajectory, env, err := s.resolve(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if u.Environment != nil {
		next.Illumination = env.SunIntensity
	}
	if u.Illumination != nil {
		if err := model.IlluminationRange.Check(*u.Illumination); err != nil {
			s.mu.Unlock()
			return err
		}
		next.Illumination = *u.Illumination
	}

	needsReset := next.Scenario != s.settings.Scenario || next.Target != s.settings.Target
	prev := s.settings
	s.settings = next
	s.trajectory = trajectory
	s.env = env

	s.log.Debug(ctx, "configuration updated",
		logging.Float("missile_speed", next.MissileSpeed),
		logging.Float("target_speed", next.TargetSpeed),
		logging.String("scenario", string(next.Scenario)),
		logging.String("target", string(next.Target)),
		logging.String("environment", string(next.Environment)),
		logging.Float("illumination", next.Illumination),
	)

	if needsReset {
		s.log.Debug(ctx, "selection change forces reset",
			logging.String("from_scenario", string(prev.Scenario)),
			logging.String("from_target", string(prev.Target)),
		)
		s.resetLocked(ctx, profile)
	} else {
		s.publishLocked(s.engine.Snapshot(s.inputsLocked()))
	}
	s.mu.Unlock()

	if needsReset {
		s.clock.Stop()
	}
	return nil
}

// SetMissileSpeed sets the missile speed in display units per second.
func (s *Session) SetMissileSpeed(ctx context.Context, v float64) error {
	return s.Apply(ctx, Update{MissileSpeed: &v})
}

// SetTargetSpeed sets the target speed in display units per second.
func (s *Session) SetTargetSpeed(ctx context.Context, v float64) error {
	return s.Apply(ctx, Update{TargetSpeed: &v})
}

// SetScenario selects the target trajectory. A change resets the engagement.
func (s *Session) SetScenario(ctx context.Context, kind model.ScenarioKind) error {
	return s.Apply(ctx, Update{Scenario: &kind})
}

// SetTarget selects the target profile. A change resets the engagement.
func (s *Session) SetTarget(ctx context.Context, id model.TargetID) error {
	return s.Apply(ctx, Update{Target: &id})
}

// SetEnvironment selects the active preset and reseeds illumination from it,
// even when the same preset is selected again.
func (s *Session) SetEnvironment(ctx context.Context, id model.EnvironmentID) error {
	return s.Apply(ctx, Update{Environment: &id})
}

// SetIllumination overrides the preset's sun intensity.
func (s *Session) SetIllumination(ctx context.Context, v float64) error {
	return s.Apply(ctx, Update{Illumination: &v})
}

// Settings returns the configuration in effect.
func (s *Session) Settings() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Snapshot returns the current state without advancing it.
func (s *Session) Snapshot() core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot(s.inputsLocked())
}

// EngagementID returns the id of the active run, or "" when idle.
func (s *Session) EngagementID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return ""
	}
	return s.run.id
}

// Subscribe registers fn for every published snapshot and returns a func
// that removes it. fn runs on the tick goroutine while the session lock is
// held: it must not block and must not call back into the session.
func (s *Session) Subscribe(fn func(core.Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || fn == nil {
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// RunHeadless resets the engagement and steps it back to back on the
// caller's goroutine until it terminates, maxTicks ticks have run
// (maxTicks <= 0 means no limit) or ctx is cancelled.
func (s *Session) RunHeadless(ctx context.Context, maxTicks int) (Report, error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Report{}, ErrClosed
	}
	s.resetLocked(ctx, s.engine.Profile())
	s.mu.Unlock()

	// A realtime loop left over from an earlier run must not interleave.
	s.clock.Stop()

	s.mu.Lock()
	s.engine.Engage()
	s.beginRunLocked(ctx)
	s.mu.Unlock()

	report := Report{ClosestRangeMeters: -1}
	var ctxErr error
	for maxTicks <= 0 || report.Ticks < uint64(maxTicks) {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		snap, more := s.step()
		report.Ticks = snap.Tick
		if report.ClosestRangeMeters < 0 || snap.Metrics.RangeMeters < report.ClosestRangeMeters {
			report.ClosestRangeMeters = snap.Metrics.RangeMeters
		}
		if !more {
			break
		}
	}

	s.mu.Lock()
	snap := s.engine.Snapshot(s.inputsLocked())
	report.Outcome = OutcomeTerminated
	if snap.Phase != core.PhaseTerminated {
		report.Outcome = OutcomeIncomplete
		if ctxErr != nil {
			report.Outcome = OutcomeAborted
		}
		s.engine.Abort()
		snap = s.engine.Snapshot(s.inputsLocked())
		s.endRunLocked(report.Outcome, snap)
		s.publishLocked(snap)
	}
	s.mu.Unlock()

	report.Final = snap
	report.ElapsedTime = snap.ElapsedTime
	report.Ticks = snap.Tick
	return report, ctxErr
}

// Close aborts any active run, cancels the clock and drops subscribers. It
// is idempotent. No tick runs after Close returns.
func (s *Session) Close() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.engine.Abort() {
		snap := s.engine.Snapshot(s.inputsLocked())
		s.endRunLocked(OutcomeClosed, snap)
		s.publishLocked(snap)
	}
	s.subs = make(map[uint64]func(core.Snapshot))
	s.mu.Unlock()

	s.cancel()
	s.clock.Stop()
	s.log.Debug(context.Background(), "session closed")
	return nil
}

func (s *Session) onTick(context.Context, uint64) bool {
	_, more := s.step()
	return more
}

// step advances one tick and reports whether the run continues.
func (s *Session) step() (core.Snapshot, bool) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.inputsLocked()
	if s.closed || !s.engine.Playing() {
		return s.engine.Snapshot(in), false
	}
	snap := s.engine.Step(in)
	if s.run != nil {
		s.run.ticks++
	}
	if s.metrics != nil {
		s.metrics.ObserveTick(time.Since(start), snap.Metrics.RangeMeters, snap.Metrics.Latency)
	}
	s.publishLocked(snap)

	if snap.Phase == core.PhaseTerminated {
		s.endRunLocked(OutcomeTerminated, snap)
		return snap, false
	}
	return snap, true
}

func (s *Session) inputsLocked() core.Inputs {
	return core.Inputs{
		MissileSpeed: s.settings.MissileSpeed,
		TargetSpeed:  s.settings.TargetSpeed,
		Trajectory:   s.trajectory,
		Environment:  s.env,
		Illumination: s.settings.Illumination,
	}
}

func (s *Session) publishLocked(snap core.Snapshot) {
	for _, fn := range s.subs {
		fn(snap)
	}
}

func (s *Session) resetLocked(ctx context.Context, profile model.TargetProfile) {
	if s.engine.Playing() {
		s.endRunLocked(OutcomeReset, s.engine.Snapshot(s.inputsLocked()))
	}
	s.engine.Reset(profile)
	s.log.Info(ctx, "engagement reset",
		logging.String("target", string(profile.ID)),
		logging.String("scenario", string(s.settings.Scenario)),
	)
	s.publishLocked(s.engine.Snapshot(s.inputsLocked()))
}

func (s *Session) beginRunLocked(ctx context.Context) {
	runCtx, log, id := logging.WithEngagementLogger(context.Background(), s.log)
	if rid := logging.RequestIDFromContext(ctx); rid != "" {
		log = log.With(logging.String("request_id", rid))
	}
	runCtx, span := s.tracer.Start(runCtx, "engagement.run",
		trace.WithNewRoot(),
		trace.WithLinks(trace.LinkFromContext(ctx)),
		trace.WithAttributes(observability.RunStartAttributes(id, s.settings)...),
	)
	s.run = &runScope{id: id, ctx: runCtx, log: log, span: span}
	if s.metrics != nil {
		s.metrics.SetRunning(true)
	}
	log.Info(runCtx, "engagement started",
		logging.String("scenario", string(s.settings.Scenario)),
		logging.String("target", string(s.settings.Target)),
		logging.String("environment", string(s.settings.Environment)),
		logging.Float("missile_speed", s.settings.MissileSpeed),
		logging.Float("target_speed", s.settings.TargetSpeed),
	)
}

func (s *Session) endRunLocked(outcome Outcome, snap core.Snapshot) {
	r := s.run
	if r == nil {
		return
	}
	s.run = nil

	r.span.SetAttributes(observability.RunEndAttributes(string(outcome), r.ticks, snap)...)
	r.span.End()

	if s.metrics != nil {
		s.metrics.RecordEngagement(string(outcome))
		s.metrics.SetRunning(false)
	}
	r.log.Info(r.ctx, "engagement ended",
		logging.String("outcome", string(outcome)),
		logging.Uint64("ticks", r.ticks),
		logging.Float("elapsed_s", snap.ElapsedTime),
		logging.String("range_m", snap.Metrics.RangeDisplay),
		logging.String("latency", snap.Metrics.LatencyDisplay),
	)
}
