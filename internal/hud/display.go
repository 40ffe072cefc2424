// Package hud renders engagement readouts and controls onto a terminal
// screen.
package hud

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/model"
)

var (
	styleDefault = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	styleHeader  = styleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleLabel   = styleDefault.Foreground(tcell.ColorGray)
	styleReadout = styleDefault.Foreground(tcell.ColorLime).Bold(true)
	styleRunning = styleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorLime)
	styleStopped = styleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
	styleHit     = styleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorRed).Bold(true)
	styleBeam    = styleDefault.Foreground(tcell.ColorRed)
	styleMissile = styleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleTarget  = styleDefault.Foreground(tcell.ColorOrange).Bold(true)
	styleHelp    = styleDefault.Foreground(tcell.ColorDarkGray)
)

// Minimum screen size the HUD lays itself out in.
const (
	MinWidth  = 60
	MinHeight = 12
)

const title = "LASER ENGAGEMENT CONSOLE"

// Display draws one frame per call. It holds no engagement state of its
// own; the caller supplies the latest snapshot and settings.
type Display struct {
	screen tcell.Screen

	// startRange scales the track strip. It is captured from the first
	// snapshot after each reset.
	startRange float64
}

// NewDisplay binds a display to an initialised screen.
func NewDisplay(screen tcell.Screen) *Display {
	return &Display{screen: screen}
}

// Draw renders snap and settings and shows the frame.
func (d *Display) Draw(snap core.Snapshot, settings model.Settings) {
	s := d.screen
	s.SetStyle(styleDefault)
	s.Clear()

	w, h := s.Size()
	if w < MinWidth || h < MinHeight {
		drawText(s, 0, 0, "SCREEN TOO SMALL", styleHit)
		drawText(s, 0, 1, fmt.Sprintf("resize to at least %d x %d", MinWidth, MinHeight), styleLabel)
		s.Show()
		return
	}

	if snap.Tick == 0 || d.startRange < snap.Metrics.Range {
		d.startRange = snap.Metrics.Range
	}

	drawText(s, (w-len(title))/2, 0, title, styleHeader)

	drawText(s, 2, 2, "Range:", styleLabel)
	drawText(s, 12, 2, snap.Metrics.RangeDisplay+" m", styleReadout)
	drawText(s, 2, 3, "Latency:", styleLabel)
	drawText(s, 12, 3, snap.Metrics.LatencyDisplay, styleReadout)

	status, style := phaseLabel(snap.Phase)
	drawText(s, w-len(status)-2, 2, status, style)
	drawText(s, w-22, 3, fmt.Sprintf("t=%7.2fs #%d", snap.ElapsedTime, snap.Tick), styleLabel)

	d.drawTrack(snap, 5, w)

	drawText(s, 2, 7, "Scenario:", styleLabel)
	drawText(s, 16, 7, settings.Scenario.DisplayName(), styleDefault)
	drawText(s, 2, 8, "Target:", styleLabel)
	drawText(s, 16, 8, targetLabel(snap, settings), styleDefault)
	drawText(s, 2, 9, "Environment:", styleLabel)
	drawText(s, 16, 9, environmentLabel(snap, settings), styleDefault)

	col := w/2 + 2
	drawText(s, col, 7, "Missile:", styleLabel)
	drawText(s, col+14, 7, fmt.Sprintf("%4.0f", settings.MissileSpeed), styleDefault)
	drawText(s, col, 8, "Target spd:", styleLabel)
	drawText(s, col+14, 8, fmt.Sprintf("%4.0f", settings.TargetSpeed), styleDefault)
	drawText(s, col, 9, "Illumination:", styleLabel)
	drawText(s, col+14, 9, fmt.Sprintf("%4.1f", settings.Illumination), styleDefault)

	drawText(s, 0, h-1, truncate(HelpLine, w), styleHelp)
	s.Show()
}

// drawTrack draws a one-line strip with the missile on the left, the
// target on the right and the beam between them while it is visible.
func (d *Display) drawTrack(snap core.Snapshot, y, w int) {
	left, right := 2, w-3
	span := right - left
	frac := 1.0
	if d.startRange > 0 {
		frac = snap.Metrics.Range / d.startRange
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	missile := right - int(frac*float64(span)+0.5)

	for x := left; x <= right; x++ {
		d.screen.SetContent(x, y+1, '-', nil, styleLabel)
	}
	if snap.BeamsVisible {
		for x := missile + 1; x < right; x++ {
			d.screen.SetContent(x, y, '=', nil, styleBeam)
		}
	}
	d.screen.SetContent(missile, y, '>', nil, styleMissile)
	d.screen.SetContent(right, y, '#', nil, styleTarget)
}

func phaseLabel(p core.Phase) (string, tcell.Style) {
	switch p {
	case core.PhaseRunning:
		return " ENGAGED ", styleRunning
	case core.PhaseTerminated:
		return " TARGET REACHED ", styleHit
	default:
		return " STANDBY ", styleStopped
	}
}

func targetLabel(snap core.Snapshot, settings model.Settings) string {
	if snap.TargetProfile.ID == settings.Target && snap.TargetProfile.Name != "" {
		return snap.TargetProfile.Name
	}
	return string(settings.Target)
}

func environmentLabel(snap core.Snapshot, settings model.Settings) string {
	if snap.Environment.ID == settings.Environment && snap.Environment.Name != "" {
		return snap.Environment.Name
	}
	return string(settings.Environment)
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}

func truncate(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	return string(r[:w])
}

// Line is the plain-text readout of a snapshot, used by headless drivers.
func Line(snap core.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick=%d t=%.2fs range=%s m latency=%s phase=%s",
		snap.Tick, snap.ElapsedTime, snap.Metrics.RangeDisplay, snap.Metrics.LatencyDisplay, snap.Phase)
	if snap.BeamsVisible {
		b.WriteString(" beams=on")
	}
	return b.String()
}
