package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/internal/config"
	"github.com/signalsfoundry/engagement-simulator/internal/hud"
	"github.com/signalsfoundry/engagement-simulator/internal/logging"
	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"github.com/signalsfoundry/engagement-simulator/timectrl"
)

// options are the command-line settings layered over the config file.
type options struct {
	maxTicks int
	every    int
}

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	scenario := flag.String("scenario", "", "scenario override: linear, diagonal or curve")
	target := flag.String("target", "", "target override: tank, drone or truck")
	environment := flag.String("environment", "", "environment override: clear, foggy, dust or night")
	missileSpeed := flag.Float64("missile-speed", 0, "missile speed override")
	targetSpeed := flag.Float64("target-speed", -1, "target speed override")
	mode := flag.String("mode", "accelerated", "clock mode: accelerated or realtime")
	seed := flag.Int64("seed", 0, "flicker seed (0 picks a time-based seed)")
	maxTicks := flag.Int("max-ticks", 5000, "tick budget for one engagement (0 means no limit)")
	every := flag.Int("every", 25, "print one HUD line every N ticks")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scenario":
			cfg.Simulation.Scenario = *scenario
		case "target":
			cfg.Simulation.Target = *target
		case "environment":
			cfg.Simulation.Environment = *environment
		case "missile-speed":
			cfg.Simulation.MissileSpeed = *missileSpeed
		case "target-speed":
			cfg.Simulation.TargetSpeed = *targetSpeed
		case "seed":
			cfg.Simulation.Seed = *seed
		}
	})
	cfg.Simulation.Mode = *mode

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	log := logging.New(cfg.Logging())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := run(ctx, cfg, log, os.Stdout, options{maxTicks: *maxTicks, every: *every})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Engagement %s after %d ticks (%.2fs simulated), closest range %.2f m\n",
		report.Outcome, report.Ticks, report.ElapsedTime, report.ClosestRangeMeters)
}

// run executes a single engagement with cfg and writes HUD lines to out.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, out io.Writer, opts options) (session.Report, error) {
	clockMode, err := cfg.ClockMode()
	if err != nil {
		return session.Report{}, err
	}

	sess, err := session.New(
		session.WithLogger(log),
		session.WithSettings(cfg.Settings()),
		session.WithClock(cfg.Simulation.TickPeriod, clockMode),
		session.WithRandSource(core.NewRandSource(cfg.Simulation.Seed)),
	)
	if err != nil {
		return session.Report{}, err
	}
	defer sess.Close()

	every := uint64(opts.every)
	if every == 0 {
		every = 1
	}
	frames := make(chan core.Snapshot, 1)
	closest := &closestRange{}
	unsubscribe := sess.Subscribe(func(snap core.Snapshot) {
		closest.observe(snap)
		if snap.Tick%every == 0 || snap.Phase == core.PhaseTerminated {
			fmt.Fprintln(out, hud.Line(snap))
		}
		if snap.Phase == core.PhaseTerminated {
			select {
			case frames <- snap:
			default:
			}
		}
	})
	defer unsubscribe()

	settings := sess.Settings()
	fmt.Fprintf(out, "Starting engagement: scenario=%s target=%s environment=%s missile=%.0f target-speed=%.0f mode=%s\n",
		settings.Scenario, settings.Target, settings.Environment, settings.MissileSpeed, settings.TargetSpeed, clockMode)

	if clockMode == timectrl.Accelerated {
		return sess.RunHeadless(ctx, opts.maxTicks)
	}
	return runRealtime(ctx, sess, frames, closest)
}

// runRealtime engages on the session clock and waits for termination or
// cancellation.
func runRealtime(ctx context.Context, sess *session.Session, terminated <-chan core.Snapshot, closest *closestRange) (session.Report, error) {
	if err := sess.Reset(ctx); err != nil {
		return session.Report{}, err
	}
	if err := sess.Engage(ctx); err != nil {
		return session.Report{}, err
	}

	report := session.Report{Outcome: session.OutcomeTerminated}
	var snap core.Snapshot
	select {
	case snap = <-terminated:
	case <-ctx.Done():
		report.Outcome = session.OutcomeAborted
		if err := sess.Abort(context.Background()); err != nil {
			return report, err
		}
		snap = sess.Snapshot()
	}

	report.Final = snap
	report.Ticks = snap.Tick
	report.ElapsedTime = snap.ElapsedTime
	report.ClosestRangeMeters = closest.meters()
	return report, ctx.Err()
}

// closestRange is the minimum range over every published snapshot.
type closestRange struct {
	mu    sync.Mutex
	best  float64
	valid bool
}

func (c *closestRange) observe(snap core.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || snap.Metrics.RangeMeters < c.best {
		c.best = snap.Metrics.RangeMeters
		c.valid = true
	}
}

func (c *closestRange) meters() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.best
}
