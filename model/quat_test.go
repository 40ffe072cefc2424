package model

import (
	"math"
	"testing"
)

const tol = 1e-9

func vecClose(a, b Vec3) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}

func TestYawQuatRotatesAboutUp(t *testing.T) {
	q := YawQuat(math.Pi / 2)
	got := q.Rotate(Vec3{X: 1})
	if !vecClose(got, Vec3{Z: -1}) {
		t.Fatalf("rotate +X by 90° yaw = %+v, want (0,0,-1)", got)
	}
	if y := q.Yaw(); math.Abs(y-math.Pi/2) > tol {
		t.Fatalf("Yaw() = %v, want %v", y, math.Pi/2)
	}
}

func TestIdentityYawIsExactlyZero(t *testing.T) {
	if y := IdentityQuat().Yaw(); y != 0 {
		t.Fatalf("identity yaw = %v, want exactly 0", y)
	}
}

func TestMulComposesLocalRotation(t *testing.T) {
	a := YawQuat(0.3)
	b := YawQuat(-0.1)
	if !a.Mul(b).ApproxEqual(YawQuat(0.2), tol) {
		t.Fatalf("yaw composition mismatch: %+v", a.Mul(b))
	}
}

func TestVectorHelpers(t *testing.T) {
	a := Vec3{X: 600, Y: 120}
	b := Vec3{X: -600, Y: 30}
	if got := a.Lerp(b, 0.5); !vecClose(got, Vec3{X: 0, Y: 75}) {
		t.Fatalf("Lerp midpoint = %+v", got)
	}
	if d := a.DistanceTo(b); math.Abs(d-math.Hypot(1200, 90)) > tol {
		t.Fatalf("DistanceTo = %v", d)
	}
	if n := (Vec3{}).Normalize(); n != (Vec3{}) {
		t.Fatalf("Normalize(zero) = %+v, want zero", n)
	}
}

func TestQuatFromAxisAngleNormalisesAxis(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{Y: 40}, math.Pi/2)
	if !q.ApproxEqual(YawQuat(math.Pi/2), tol) {
		t.Fatalf("long axis rotation = %+v, want quarter yaw", q)
	}
	if n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z); math.Abs(n-1) > tol {
		t.Fatalf("|q| = %v, want 1", n)
	}
	if back := q.Mul(q.Conjugate()); !back.ApproxEqual(IdentityQuat(), tol) {
		t.Fatalf("q * q^-1 = %+v, want identity", back)
	}
}
