package model

// EntityState is the positional record of a simulated body (the missile or
// the target). It carries no behaviour; the engine replaces it wholesale
// every tick.
type EntityState struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`

	// HalfHeight lifts the body's geometric centre above the ground plane.
	// Zero for the missile.
	HalfHeight float64 `json:"halfHeight"`
}

// Center returns the geometric centre of the body.
func (e EntityState) Center() Vec3 {
	return e.Position.Add(Vec3{Y: e.HalfHeight})
}
