package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownScenario is returned when a scenario name is not recognised.
var ErrUnknownScenario = errors.New("unknown scenario")

// ScenarioKind selects the target's lateral displacement rule.
type ScenarioKind string

const (
	ScenarioLinear   ScenarioKind = "linear"
	ScenarioDiagonal ScenarioKind = "diagonal"
	ScenarioCurve    ScenarioKind = "curve"
)

// Scenarios lists the supported scenario kinds in display order.
var Scenarios = []ScenarioKind{ScenarioLinear, ScenarioDiagonal, ScenarioCurve}

// ParseScenarioKind validates a scenario name.
func ParseScenarioKind(s string) (ScenarioKind, error) {
	kind := ScenarioKind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range Scenarios {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScenario, s)
}

// DisplayName is the HUD label for the scenario.
func (k ScenarioKind) DisplayName() string {
	switch k {
	case ScenarioLinear:
		return "Linear"
	case ScenarioDiagonal:
		return "Diagonal"
	case ScenarioCurve:
		return "S-curve"
	default:
		return string(k)
	}
}
