package core

import "github.com/signalsfoundry/engagement-simulator/model"

// Phase is the coarse run state reported to consumers.
type Phase string

const (
	PhaseStopped    Phase = "stopped"
	PhaseRunning    Phase = "running"
	PhaseTerminated Phase = "terminated"
)

// Beam is the transform of one beam channel: a unit-length segment along
// local +Z, scaled to Length and centred at Position.
type Beam struct {
	Channel  int        `json:"channel"`
	Position model.Vec3 `json:"position"`
	Rotation model.Quat `json:"rotation"`
	Length   float64    `json:"length"`
	Opacity  float64    `json:"opacity"`
}

// Snapshot is the immutable per-tick output handed to renderers and the
// HUD. It is a value: consumers may keep it without copying.
type Snapshot struct {
	Tick        uint64  `json:"tick"`
	ElapsedTime float64 `json:"elapsedTime"`
	Phase       Phase   `json:"phase"`
	Playing     bool    `json:"playing"`

	Missile model.EntityState `json:"missile"`
	Target  model.EntityState `json:"target"`

	Beams        [BeamChannels]Beam `json:"beams"`
	BeamsVisible bool               `json:"beamsVisible"`

	Metrics Metrics `json:"metrics"`

	// Configuration in effect for this tick.
	Scenario      model.ScenarioKind      `json:"scenario"`
	TargetProfile model.TargetProfile     `json:"targetProfile"`
	Environment   model.EnvironmentPreset `json:"environment"`
	MissileSpeed  float64                 `json:"missileSpeed"`
	TargetSpeed   float64                 `json:"targetSpeed"`
	Illumination  float64                 `json:"illumination"`
}
