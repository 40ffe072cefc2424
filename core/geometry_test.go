package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/engagement-simulator/model"
)

func TestLookRotationAimsLocalZ(t *testing.T) {
	cases := []struct {
		name     string
		from, to model.Vec3
	}{
		{"along -X", model.Vec3{X: 600, Y: 120}, model.Vec3{X: -600, Y: 25}},
		{"along +X", model.Vec3{}, model.Vec3{X: 10}},
		{"oblique", model.Vec3{X: 1, Y: 2, Z: 3}, model.Vec3{X: -4, Y: 0, Z: 9}},
		{"straight down", model.Vec3{Y: 100}, model.Vec3{}},
	}
	for _, tc := range cases {
		q := LookRotation(tc.from, tc.to)
		got := q.Rotate(model.Vec3{Z: 1})
		want := tc.to.Sub(tc.from).Normalize()
		if got.DistanceTo(want) > 1e-3 {
			t.Fatalf("%s: local +Z -> %+v, want %+v", tc.name, got, want)
		}
	}
}

func TestLookRotationKeepsUpRight(t *testing.T) {
	q := LookRotation(model.Vec3{}, model.Vec3{X: -1})
	up := q.Rotate(model.UpAxis)
	if up.DistanceTo(model.UpAxis) > 1e-9 {
		t.Fatalf("level look should keep local up = world up, got %+v", up)
	}
}

func TestMissileAxisCorrectionIsMinusQuarterTurn(t *testing.T) {
	if y := MissileAxisCorrection.Yaw(); math.Abs(y+math.Pi/2) > 1e-12 {
		t.Fatalf("correction yaw = %v, want -π/2", y)
	}
	// the correction maps the nose axis onto the look axis
	got := MissileAxisCorrection.Rotate(MissileNoseAxis)
	if got.DistanceTo(model.Vec3{Z: 1}) > 1e-12 {
		t.Fatalf("correction maps nose to %+v, want +Z", got)
	}
}

func TestOrientMissileComposesLookAndCorrection(t *testing.T) {
	from := model.Vec3{X: 500, Y: 120}
	aim := model.Vec3{X: -500, Y: 25, Z: 40}
	want := LookRotation(from, aim).Mul(MissileAxisCorrection)
	if got := OrientMissile(from, aim); !got.ApproxEqual(want, 1e-12) {
		t.Fatalf("OrientMissile = %+v, want %+v", got, want)
	}
}
