package hud

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/kb"
	"github.com/signalsfoundry/engagement-simulator/model"
)

func newScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	screen.SetSize(w, h)
	t.Cleanup(screen.Fini)
	return screen
}

// screenText returns the rendered rows as strings.
func screenText(screen tcell.SimulationScreen) []string {
	cells, w, h := screen.GetContents()
	rows := make([]string, h)
	for y := 0; y < h; y++ {
		var b strings.Builder
		for x := 0; x < w; x++ {
			c := cells[y*w+x]
			if len(c.Runes) == 0 {
				b.WriteRune(' ')
				continue
			}
			b.WriteRune(c.Runes[0])
		}
		rows[y] = b.String()
	}
	return rows
}

func initialSnapshot(t *testing.T) core.Snapshot {
	t.Helper()
	profile, err := kb.TargetFor(model.TargetTank)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	env, err := kb.PresetFor(model.EnvironmentClear)
	if err != nil {
		t.Fatalf("environment: %v", err)
	}
	return core.Snapshot{
		Phase:         core.PhaseStopped,
		Metrics:       core.ComputeMetrics(1203.4),
		Scenario:      model.ScenarioLinear,
		TargetProfile: profile,
		Environment:   env,
		MissileSpeed:  600,
		TargetSpeed:   30,
		Illumination:  10,
	}
}

func TestDrawShowsReadoutsAndSelections(t *testing.T) {
	screen := newScreen(t, 100, 14)
	d := NewDisplay(screen)

	d.Draw(initialSnapshot(t), model.DefaultSettings())

	text := strings.Join(screenText(screen), "\n")
	for _, want := range []string{
		title,
		"120.34 m",
		"STANDBY",
		"Linear",
		"Heavy tank",
		"Clear",
		" 600",
		"  30",
		"10.0",
		"[e]ngage",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("screen missing %q:\n%s", want, text)
		}
	}
}

func TestDrawRunningShowsBeam(t *testing.T) {
	screen := newScreen(t, 80, 14)
	d := NewDisplay(screen)

	snap := initialSnapshot(t)
	d.Draw(snap, model.DefaultSettings())

	snap.Tick = 100
	snap.Phase = core.PhaseRunning
	snap.BeamsVisible = true
	snap.Metrics = core.ComputeMetrics(600)
	d.Draw(snap, model.DefaultSettings())

	rows := screenText(screen)
	if !strings.Contains(rows[2], "ENGAGED") {
		t.Fatalf("status row = %q", rows[2])
	}
	track := rows[5]
	missile := strings.IndexRune(track, '>')
	target := strings.IndexRune(track, '#')
	if missile < 0 || target < 0 || missile >= target {
		t.Fatalf("track = %q", track)
	}
	// Half the starting range puts the missile near the middle.
	if mid := (target + 2) / 2; missile < mid-2 || missile > mid+2 {
		t.Fatalf("missile at %d, want near %d (track %q)", missile, mid, track)
	}
	if !strings.Contains(track[missile:target], "==") {
		t.Fatalf("beam not drawn: %q", track)
	}
}

func TestDrawHidesBeamWhenStopped(t *testing.T) {
	screen := newScreen(t, 80, 14)
	d := NewDisplay(screen)

	snap := initialSnapshot(t)
	snap.Phase = core.PhaseTerminated
	d.Draw(snap, model.DefaultSettings())

	rows := screenText(screen)
	if strings.Contains(rows[5], "=") {
		t.Fatalf("beam drawn while stopped: %q", rows[5])
	}
	if !strings.Contains(rows[2], "TARGET REACHED") {
		t.Fatalf("status row = %q", rows[2])
	}
}

func TestDrawSmallScreen(t *testing.T) {
	screen := newScreen(t, 20, 5)
	NewDisplay(screen).Draw(initialSnapshot(t), model.DefaultSettings())

	if rows := screenText(screen); !strings.HasPrefix(rows[0], "SCREEN TOO SMALL") {
		t.Fatalf("first row = %q", rows[0])
	}
}

func TestDrawFallsBackToSettingIDs(t *testing.T) {
	screen := newScreen(t, 80, 14)
	settings := model.DefaultSettings()
	settings.Target = model.TargetDrone
	settings.Environment = model.EnvironmentNight

	NewDisplay(screen).Draw(initialSnapshot(t), settings)

	text := strings.Join(screenText(screen), "\n")
	if !strings.Contains(text, "drone") || !strings.Contains(text, "night") {
		t.Fatalf("pending selections not shown:\n%s", text)
	}
}

func TestLine(t *testing.T) {
	snap := initialSnapshot(t)
	snap.Tick = 3
	snap.ElapsedTime = 0.06
	got := Line(snap)
	want := "tick=3 t=0.06s range=120.34 m latency=8022.67 phase=stopped"
	if got != want {
		t.Fatalf("Line = %q, want %q", got, want)
	}

	snap.BeamsVisible = true
	if got := Line(snap); !strings.HasSuffix(got, " beams=on") {
		t.Fatalf("Line = %q", got)
	}
}
