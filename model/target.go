package model

// TargetID names one of the selectable target bodies.
type TargetID string

const (
	TargetTank  TargetID = "tank"
	TargetDrone TargetID = "drone"
	TargetTruck TargetID = "truck"
)

// Footprint is the bounding box of a target body in world units.
type Footprint struct {
	Length float64 `json:"length"`
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
}

// TargetProfile is the immutable description of a target body. It is used
// to initialise or replace the target entity and never changes during a run.
type TargetProfile struct {
	ID        TargetID  `json:"id"`
	Name      string    `json:"name"`
	Footprint Footprint `json:"footprint"`

	// BodyHeight is the overall height used for placement. It can exceed
	// Footprint.Height when the body carries superstructure (turret, cab).
	BodyHeight float64 `json:"bodyHeight"`
}

// HalfHeight is the vertical offset of the body's geometric centre.
func (p TargetProfile) HalfHeight() float64 {
	return p.BodyHeight / 2
}
