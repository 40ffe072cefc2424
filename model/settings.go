package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is returned when a configuration input falls outside its
// permitted range.
var ErrOutOfRange = errors.New("value out of range")

// Range bounds a user-adjustable scalar. Step is the UI increment; zero
// means continuous.
type Range struct {
	Name string
	Min  float64
	Max  float64
	Step float64
}

var (
	MissileSpeedRange = Range{Name: "missile speed", Min: 200, Max: 1500, Step: 50}
	TargetSpeedRange  = Range{Name: "target speed", Min: 0, Max: 150, Step: 5}
	IlluminationRange = Range{Name: "illumination", Min: 0, Max: 20, Step: 0.5}
)

// Check returns ErrOutOfRange when v lies outside [Min, Max] or is NaN.
func (r Range) Check(v float64) error {
	if math.IsNaN(v) || v < r.Min || v > r.Max {
		return fmt.Errorf("%w: %s %v not in [%v, %v]", ErrOutOfRange, r.Name, v, r.Min, r.Max)
	}
	return nil
}

// CheckStep is Check plus alignment to Step, measured from Min.
func (r Range) CheckStep(v float64) error {
	if err := r.Check(v); err != nil {
		return err
	}
	if r.Step <= 0 {
		return nil
	}
	n := (v - r.Min) / r.Step
	if math.Abs(n-math.Round(n)) > 1e-9 {
		return fmt.Errorf("%w: %s %v is not a multiple of %v", ErrOutOfRange, r.Name, v, r.Step)
	}
	return nil
}

// RunState is the engine's run bookkeeping.
type RunState struct {
	Tick        uint64  `json:"tick"`
	ElapsedTime float64 `json:"elapsedTime"`
	IsPlaying   bool    `json:"isPlaying"`
}

// Settings are the user-adjustable engagement inputs.
type Settings struct {
	MissileSpeed float64       `json:"missileSpeed"`
	TargetSpeed  float64       `json:"targetSpeed"`
	Scenario     ScenarioKind  `json:"scenario"`
	Target       TargetID      `json:"target"`
	Environment  EnvironmentID `json:"environment"`
	Illumination float64       `json:"illumination"`
}

// DefaultSettings is the state a fresh console starts in. Illumination is
// the clear-sky preset's sun intensity.
func DefaultSettings() Settings {
	return Settings{
		MissileSpeed: 600,
		TargetSpeed:  30,
		Scenario:     ScenarioLinear,
		Target:       TargetTank,
		Environment:  EnvironmentClear,
		Illumination: 10,
	}
}
