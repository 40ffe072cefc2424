package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/engagement-simulator/model"
)

const (
	// LongitudinalGain scales target speed along X. Lateral motion uses
	// the bare speed, so forward closure dominates.
	LongitudinalGain = 2.5

	CurveWaveNumber = 0.005
	CurveAmplitude  = 200.0
	CurveYawGain    = 0.5
)

// TrajectoryModel advances the target for one tick of length dt.
// Implementations are stateless; the returned state replaces the input.
type TrajectoryModel interface {
	Kind() model.ScenarioKind
	Advance(target model.EntityState, speed, dt float64) model.EntityState
}

// LinearTrajectory moves the target straight along +X.
type LinearTrajectory struct{}

func (LinearTrajectory) Kind() model.ScenarioKind { return model.ScenarioLinear }

func (LinearTrajectory) Advance(target model.EntityState, speed, dt float64) model.EntityState {
	target.Position.X += speed * LongitudinalGain * dt
	target.Rotation = model.IdentityQuat()
	return target
}

// DiagonalTrajectory adds a constant drift along +Z.
type DiagonalTrajectory struct{}

func (DiagonalTrajectory) Kind() model.ScenarioKind { return model.ScenarioDiagonal }

func (DiagonalTrajectory) Advance(target model.EntityState, speed, dt float64) model.EntityState {
	target.Position.X += speed * LongitudinalGain * dt
	target.Position.Z += speed * dt
	target.Rotation = model.IdentityQuat()
	return target
}

// CurveTrajectory follows an S-shaped path keyed to absolute X. Z and yaw
// are recomputed from X every tick, never accumulated.
type CurveTrajectory struct{}

func (CurveTrajectory) Kind() model.ScenarioKind { return model.ScenarioCurve }

func (CurveTrajectory) Advance(target model.EntityState, speed, dt float64) model.EntityState {
	target.Position.X += speed * LongitudinalGain * dt
	target.Position.Z = CurveLateral(target.Position.X)
	target.Rotation = model.YawQuat(CurveYaw(target.Position.X))
	return target
}

// CurveLateral is the S-curve's Z offset at world x.
func CurveLateral(x float64) float64 {
	return math.Sin(x*CurveWaveNumber) * CurveAmplitude
}

// CurveYaw is the S-curve's heading at world x, in radians.
func CurveYaw(x float64) float64 {
	return math.Cos(x*CurveWaveNumber) * CurveYawGain
}

// NewTrajectory chooses the trajectory model for a scenario.
func NewTrajectory(kind model.ScenarioKind) (TrajectoryModel, error) {
	switch kind {
	case model.ScenarioLinear:
		return LinearTrajectory{}, nil
	case model.ScenarioDiagonal:
		return DiagonalTrajectory{}, nil
	case model.ScenarioCurve:
		return CurveTrajectory{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownScenario, kind)
	}
}
