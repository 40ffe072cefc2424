package core

import (
	"github.com/signalsfoundry/engagement-simulator/model"
)

const (
	// TickSeconds is the fixed simulation step.
	TickSeconds = 0.02

	// MissileSpeedScale reconciles display speed units with world units.
	MissileSpeedScale = 10.0
	// AimOffset lifts the guidance aim point above the target's base,
	// independent of target size.
	AimOffset = 10.0
	// OvershootMargin is how far past the target (along X) the missile
	// must be for the run to end.
	OvershootMargin = 100.0

	TargetStartX = -600.0

	BeamChannels = 3
	BeamSpread   = 2.0
)

// MissileLaunchPoint is where the missile sits after a reset.
var MissileLaunchPoint = model.Vec3{X: 600, Y: 120, Z: 0}

// Inputs is the configuration read at the start of a tick. Changes made
// between ticks are visible on the next one.
type Inputs struct {
	MissileSpeed float64
	TargetSpeed  float64
	Trajectory   TrajectoryModel
	Environment  model.EnvironmentPreset
	// Illumination is passed through to the snapshot for renderers.
	Illumination float64
}

// Engine is the guidance and metrics kernel. It is not safe for
// concurrent use; callers serialise access.
type Engine struct {
	profile model.TargetProfile
	missile model.EntityState
	target  model.EntityState

	run        model.RunState
	terminated bool

	beams        [BeamChannels]Beam
	beamsVisible bool
	metrics      Metrics

	rand RandSource
}

// EngineOption customises Engine construction.
type EngineOption func(*Engine)

// WithRandSource injects the flicker randomness source.
func WithRandSource(r RandSource) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// NewEngine returns an engine reset for profile.
func NewEngine(profile model.TargetProfile, opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.rand == nil {
		e.rand = NewRandSource(0)
	}
	e.Reset(profile)
	return e
}

// Reset puts both entities at their launch positions with zero rotation,
// zeroes the clock, stops the run and hides the beams. It is idempotent.
func (e *Engine) Reset(profile model.TargetProfile) {
	e.profile = profile
	e.missile = model.EntityState{
		Position: MissileLaunchPoint,
		Rotation: model.IdentityQuat(),
	}
	e.target = model.EntityState{
		Position:   model.Vec3{X: TargetStartX, Y: profile.HalfHeight()},
		Rotation:   model.IdentityQuat(),
		HalfHeight: profile.HalfHeight(),
	}
	e.run = model.RunState{}
	e.terminated = false
	e.beams = [BeamChannels]Beam{}
	e.beamsVisible = false
	e.metrics = ComputeMetrics(e.missile.Position.DistanceTo(e.target.Center()))
}

// Engage transitions Stopped→Running. It reports whether the state changed.
func (e *Engine) Engage() bool {
	if e.run.IsPlaying {
		return false
	}
	e.run.IsPlaying = true
	e.terminated = false
	return true
}

// Abort transitions Running→Stopped. It reports whether the state changed.
func (e *Engine) Abort() bool {
	if !e.run.IsPlaying {
		return false
	}
	e.run.IsPlaying = false
	e.beamsVisible = false
	return true
}

// Playing reports whether the run is active.
func (e *Engine) Playing() bool { return e.run.IsPlaying }

// Terminated reports whether the last run ended on the overshoot check.
func (e *Engine) Terminated() bool { return e.terminated }

// Profile returns the active target profile.
func (e *Engine) Profile() model.TargetProfile { return e.profile }

// Step advances the simulation by one tick. A stopped engine is left
// untouched and its current snapshot returned.
func (e *Engine) Step(in Inputs) Snapshot {
	if !e.run.IsPlaying {
		return e.Snapshot(in)
	}

	e.run.Tick++
	e.run.ElapsedTime += TickSeconds

	e.target = in.Trajectory.Advance(e.target, in.TargetSpeed, TickSeconds)
	e.missile.Position.X -= (in.MissileSpeed / MissileSpeedScale) * TickSeconds
	e.missile.Rotation = OrientMissile(e.missile.Position, AimPoint(e.target))

	center := e.target.Center()
	rng := e.missile.Position.DistanceTo(center)
	e.metrics = ComputeMetrics(rng)

	for i := range e.beams {
		opacity := in.Environment.LaserOpacity * (0.5 + e.rand.Float64()*0.5)
		e.beams[i] = BeamFor(i, e.missile.Position, center, rng, opacity)
	}
	e.beamsVisible = true

	if Overshot(e.missile, e.target) {
		e.run.IsPlaying = false
		e.terminated = true
		e.beamsVisible = false
	}
	return e.Snapshot(in)
}

// Snapshot captures the current state together with the inputs in effect.
func (e *Engine) Snapshot(in Inputs) Snapshot {
	phase := PhaseStopped
	switch {
	case e.run.IsPlaying:
		phase = PhaseRunning
	case e.terminated:
		phase = PhaseTerminated
	}

	var scenario model.ScenarioKind
	if in.Trajectory != nil {
		scenario = in.Trajectory.Kind()
	}

	return Snapshot{
		Tick:          e.run.Tick,
		ElapsedTime:   e.run.ElapsedTime,
		Phase:         phase,
		Playing:       e.run.IsPlaying,
		Missile:       e.missile,
		Target:        e.target,
		Beams:         e.beams,
		BeamsVisible:  e.beamsVisible,
		Metrics:       e.metrics,
		Scenario:      scenario,
		TargetProfile: e.profile,
		Environment:   in.Environment,
		MissileSpeed:  in.MissileSpeed,
		TargetSpeed:   in.TargetSpeed,
		Illumination:  in.Illumination,
	}
}

// AimPoint is the guidance target: AimOffset above the target's base.
func AimPoint(target model.EntityState) model.Vec3 {
	return target.Position.Add(model.Vec3{Y: AimOffset})
}

// BeamFor builds beam channel i. Channels are spread symmetrically in Y
// and Z around the target centre; the segment runs from the missile
// towards the offset point and is centred halfway along it.
func BeamFor(channel int, from, center model.Vec3, length, opacity float64) Beam {
	off := float64(channel-1) * BeamSpread
	tip := center.Add(model.Vec3{Y: off, Z: off})
	return Beam{
		Channel:  channel,
		Position: from.Lerp(tip, 0.5),
		Rotation: LookRotation(from, tip),
		Length:   length,
		Opacity:  opacity,
	}
}

// Overshot is the sole stop condition: the missile has passed the target
// by more than OvershootMargin along X.
func Overshot(missile, target model.EntityState) bool {
	return missile.Position.X < target.Position.X-OvershootMargin
}
