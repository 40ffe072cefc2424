package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/engagement-simulator/model"
)

// MissileAxisCorrection is the fixed local-yaw offset applied after the
// look-at rotation. The missile body is modelled along its local X axis
// while LookRotation aims local +Z, so a -90° turn about local up
// brings the nose onto the line of sight.
var MissileAxisCorrection = model.QuatFromMgl(mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{0, 1, 0}))

// MissileNoseAxis is the missile body's forward axis in local space.
var MissileNoseAxis = model.Vec3{X: 1}

// LookRotation returns the orientation whose local +Z axis points from
// `from` towards `to`, keeping local +Y as close to world up as possible.
// Coincident points yield a rotation facing world +Z.
func LookRotation(from, to model.Vec3) model.Quat {
	up := model.UpAxis.Mgl()
	z := to.Sub(from).Mgl()
	if z.Len() == 0 {
		z = mgl64.Vec3{0, 0, 1}
	}
	z = z.Normalize()

	x := up.Cross(z)
	if x.Len() == 0 {
		// Line of sight is vertical; nudge it off the up axis.
		z[2] += 0.0001
		z = z.Normalize()
		x = up.Cross(z)
	}
	x = x.Normalize()
	y := z.Cross(x)

	return model.QuatFromMgl(mgl64.Mat4ToQuat(mgl64.Mat3FromCols(x, y, z).Mat4()))
}

// OrientMissile is the two-step missile orientation: face the aim point,
// then apply MissileAxisCorrection about the missile's own up axis.
func OrientMissile(missile, aim model.Vec3) model.Quat {
	return LookRotation(missile, aim).Mul(MissileAxisCorrection)
}
