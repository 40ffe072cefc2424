package model

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Quat is a unit orientation quaternion. The zero value is not a valid
// rotation; use IdentityQuat. The algebra is delegated to mgl64; Quat keeps
// flat fields so snapshots serialise as {W,X,Y,Z}.
type Quat struct {
	W, X, Y, Z float64
}

// UpAxis is the world (and default local) up direction.
var UpAxis = Vec3{Y: 1}

// IdentityQuat returns the "no rotation" orientation.
func IdentityQuat() Quat {
	return QuatFromMgl(mgl64.QuatIdent())
}

// QuatFromMgl converts an mgl64 quaternion.
func QuatFromMgl(q mgl64.Quat) Quat {
	return Quat{W: q.W, X: q.V[0], Y: q.V[1], Z: q.V[2]}
}

// Mgl returns q as an mgl64 quaternion.
func (q Quat) Mgl() mgl64.Quat {
	return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.X, q.Y, q.Z}}
}

// Vec3FromMgl converts an mgl64 vector.
func Vec3FromMgl(v mgl64.Vec3) Vec3 {
	return Vec3{X: v[0], Y: v[1], Z: v[2]}
}

// Mgl returns v as an mgl64 vector.
func (v Vec3) Mgl() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// QuatFromAxisAngle builds a rotation of angle radians about axis.
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	return QuatFromMgl(mgl64.QuatRotate(angle, axis.Normalize().Mgl()))
}

// YawQuat rotates about the world up axis.
func YawQuat(yaw float64) Quat {
	return QuatFromAxisAngle(UpAxis, yaw)
}

// Mul returns q * r: r applied first in q's local frame.
func (q Quat) Mul(r Quat) Quat {
	return QuatFromMgl(q.Mgl().Mul(r.Mgl()))
}

// Conjugate returns the inverse rotation of a unit quaternion.
func (q Quat) Conjugate() Quat {
	return QuatFromMgl(q.Mgl().Conjugate())
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	return Vec3FromMgl(q.Mgl().Rotate(v.Mgl()))
}

// Yaw returns the heading about the up axis (Y of a Y-X-Z Euler
// decomposition). For a pure yaw rotation it is the exact angle.
func (q Quat) Yaw() float64 {
	return math.Atan2(2*(q.X*q.Z+q.W*q.Y), 1-2*(q.X*q.X+q.Y*q.Y))
}

// ApproxEqual reports whether q and r describe the same rotation within tol.
func (q Quat) ApproxEqual(r Quat, tol float64) bool {
	return math.Abs(math.Abs(q.Mgl().Dot(r.Mgl()))-1) <= tol
}
