package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/engagement-simulator/model"
)

func startTarget() model.EntityState {
	return model.EntityState{
		Position:   model.Vec3{X: TargetStartX, Y: 15},
		Rotation:   model.IdentityQuat(),
		HalfHeight: 15,
	}
}

func TestLinearKeepsZAndYawAtZero(t *testing.T) {
	s := startTarget()
	for range 500 {
		s = LinearTrajectory{}.Advance(s, 30, TickSeconds)
		if s.Position.Z != 0 {
			t.Fatalf("linear z = %v, want exactly 0", s.Position.Z)
		}
		if y := s.Rotation.Yaw(); y != 0 {
			t.Fatalf("linear yaw = %v, want exactly 0", y)
		}
		if s.Position.Y != 15 {
			t.Fatalf("linear must not change height, y = %v", s.Position.Y)
		}
	}
	if want := TargetStartX + 500*30*2.5*TickSeconds; math.Abs(s.Position.X-want) > 1e-9 {
		t.Fatalf("linear x = %v, want %v", s.Position.X, want)
	}
}

func TestDiagonalDriftsLaterallyAtUnitGain(t *testing.T) {
	s := startTarget()
	s = DiagonalTrajectory{}.Advance(s, 40, TickSeconds)
	if math.Abs(s.Position.X-(TargetStartX+40*2.5*TickSeconds)) > 1e-12 {
		t.Fatalf("diagonal x = %v", s.Position.X)
	}
	if math.Abs(s.Position.Z-40*TickSeconds) > 1e-12 {
		t.Fatalf("diagonal z = %v, want %v", s.Position.Z, 40*TickSeconds)
	}
	if s.Rotation != model.IdentityQuat() {
		t.Fatalf("diagonal yaw must be forced to zero")
	}
}

func TestCurveRecomputesFromAbsoluteX(t *testing.T) {
	s := startTarget()
	// start from a drifted z to prove nothing accumulates
	s.Position.Z = 12345
	for range 300 {
		s = CurveTrajectory{}.Advance(s, 150, TickSeconds)
		if s.Position.Z != math.Sin(s.Position.X*0.005)*200 {
			t.Fatalf("curve z = %v, want sin(x*0.005)*200 at x=%v", s.Position.Z, s.Position.X)
		}
		if y := s.Rotation.Yaw(); math.Abs(y-math.Cos(s.Position.X*0.005)*0.5) > 1e-12 {
			t.Fatalf("curve yaw = %v at x=%v", y, s.Position.X)
		}
		if s.Position.Y != 15 {
			t.Fatalf("curve must keep height constant, y = %v", s.Position.Y)
		}
	}
}

func TestZeroTargetSpeedHoldsPosition(t *testing.T) {
	s := startTarget()
	for _, traj := range []TrajectoryModel{LinearTrajectory{}, DiagonalTrajectory{}} {
		got := traj.Advance(s, 0, TickSeconds)
		if got.Position != s.Position {
			t.Fatalf("%s moved at zero speed: %+v", traj.Kind(), got.Position)
		}
	}
}

func TestNewTrajectory(t *testing.T) {
	for _, kind := range model.Scenarios {
		m, err := NewTrajectory(kind)
		if err != nil {
			t.Fatalf("NewTrajectory(%q): %v", kind, err)
		}
		if m.Kind() != kind {
			t.Fatalf("NewTrajectory(%q).Kind() = %q", kind, m.Kind())
		}
	}
	if _, err := NewTrajectory("spiral"); !errors.Is(err, model.ErrUnknownScenario) {
		t.Fatalf("unknown scenario err = %v", err)
	}
}
