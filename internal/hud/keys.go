package hud

import (
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"github.com/signalsfoundry/engagement-simulator/kb"
	"github.com/signalsfoundry/engagement-simulator/model"
)

// Action is a console command bound to a key.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionEngage
	ActionAbort
	ActionReset
	ActionNextScenario
	ActionNextTarget
	ActionNextEnvironment
	ActionMissileFaster
	ActionMissileSlower
	ActionTargetFaster
	ActionTargetSlower
	ActionBrighter
	ActionDimmer
)

// HelpLine lists the key bindings.
const HelpLine = "[e]ngage [a]bort [r]eset  [s]cenario [t]arget [v]isibility  +/- missile  >/< target  ]/[ light  [q]uit"

// ActionFor maps a key event to an action.
func ActionFor(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return ActionQuit
	case tcell.KeyEnter:
		return ActionEngage
	case tcell.KeyUp:
		return ActionMissileFaster
	case tcell.KeyDown:
		return ActionMissileSlower
	case tcell.KeyRight:
		return ActionTargetFaster
	case tcell.KeyLeft:
		return ActionTargetSlower
	case tcell.KeyRune:
	default:
		return ActionNone
	}

	switch ev.Rune() {
	case 'q', 'Q':
		return ActionQuit
	case 'e', 'E', ' ':
		return ActionEngage
	case 'a', 'A':
		return ActionAbort
	case 'r', 'R':
		return ActionReset
	case 's', 'S':
		return ActionNextScenario
	case 't', 'T':
		return ActionNextTarget
	case 'v', 'V':
		return ActionNextEnvironment
	case '+', '=':
		return ActionMissileFaster
	case '-', '_':
		return ActionMissileSlower
	case '>', '.':
		return ActionTargetFaster
	case '<', ',':
		return ActionTargetSlower
	case ']':
		return ActionBrighter
	case '[':
		return ActionDimmer
	}
	return ActionNone
}

// UpdateFor translates a settings action into a session update relative
// to current. It reports false for actions that are not settings changes
// or that would not change anything.
func UpdateFor(a Action, current model.Settings, catalog *kb.Catalog) (session.Update, bool) {
	var u session.Update
	switch a {
	case ActionMissileFaster, ActionMissileSlower:
		v, ok := stepValue(model.MissileSpeedRange, current.MissileSpeed, a == ActionMissileFaster)
		if !ok {
			return u, false
		}
		u.MissileSpeed = &v
	case ActionTargetFaster, ActionTargetSlower:
		v, ok := stepValue(model.TargetSpeedRange, current.TargetSpeed, a == ActionTargetFaster)
		if !ok {
			return u, false
		}
		u.TargetSpeed = &v
	case ActionBrighter, ActionDimmer:
		v, ok := stepValue(model.IlluminationRange, current.Illumination, a == ActionBrighter)
		if !ok {
			return u, false
		}
		u.Illumination = &v
	case ActionNextScenario:
		next := model.Scenarios[0]
		for i, k := range model.Scenarios {
			if k == current.Scenario {
				next = model.Scenarios[(i+1)%len(model.Scenarios)]
			}
		}
		u.Scenario = &next
	case ActionNextTarget:
		targets := catalog.ListTargets()
		if len(targets) == 0 {
			return u, false
		}
		next := targets[0].ID
		for i, p := range targets {
			if p.ID == current.Target {
				next = targets[(i+1)%len(targets)].ID
			}
		}
		u.Target = &next
	case ActionNextEnvironment:
		envs := catalog.ListEnvironments()
		if len(envs) == 0 {
			return u, false
		}
		next := envs[0].ID
		for i, e := range envs {
			if e.ID == current.Environment {
				next = envs[(i+1)%len(envs)].ID
			}
		}
		u.Environment = &next
	default:
		return u, false
	}
	return u, true
}

// stepValue moves v one step up or down, snapping to the step grid and
// clamping to the range.
func stepValue(r model.Range, v float64, up bool) (float64, bool) {
	n := math.Floor((v-r.Min)/r.Step + 1e-9)
	if up {
		n++
	} else if math.Abs(r.Min+n*r.Step-v) < 1e-9 {
		n--
	}
	next := math.Min(r.Max, math.Max(r.Min, r.Min+n*r.Step))
	if math.Abs(next-v) < 1e-9 {
		return v, false
	}
	return next, true
}
