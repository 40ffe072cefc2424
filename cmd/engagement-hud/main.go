package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/internal/config"
	"github.com/signalsfoundry/engagement-simulator/internal/hud"
	"github.com/signalsfoundry/engagement-simulator/internal/logging"
	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"github.com/signalsfoundry/engagement-simulator/kb"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	logPath := flag.String("log-file", "engagement-hud.log", "file receiving log output while the HUD owns the terminal")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logCfg := cfg.Logging()
	logCfg.Output = logFile
	log := logging.New(logCfg)

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init screen: %v\n", err)
		os.Exit(1)
	}

	err = run(context.Background(), cfg, log, screen)
	screen.Fini()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engagement hud: %v\n", err)
		os.Exit(1)
	}
}

// run drives the console until the user quits or the screen closes.
// screen must already be initialised; run does not finalise it.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, screen tcell.Screen) error {
	clockMode, err := cfg.ClockMode()
	if err != nil {
		return err
	}
	catalog := kb.Default()
	sess, err := session.New(
		session.WithLogger(log),
		session.WithCatalog(catalog),
		session.WithSettings(cfg.Settings()),
		session.WithClock(cfg.Simulation.TickPeriod, clockMode),
		session.WithRandSource(core.NewRandSource(cfg.Simulation.Seed)),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	frames := make(chan core.Snapshot, 1)
	unsubscribe := sess.Subscribe(func(snap core.Snapshot) {
		select {
		case frames <- snap:
		default:
			select {
			case <-frames:
			default:
			}
			frames <- snap
		}
	})
	defer unsubscribe()

	events := make(chan tcell.Event)
	quit := make(chan struct{})
	defer close(quit)
	go pollEvents(screen, events, quit)

	display := hud.NewDisplay(screen)
	snap := sess.Snapshot()
	display.Draw(snap, sess.Settings())

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap = <-frames:
			display.Draw(snap, sess.Settings())
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
				display.Draw(snap, sess.Settings())
			case *tcell.EventKey:
				done, err := handleKey(ctx, sess, catalog, hud.ActionFor(ev), log)
				if err != nil {
					return err
				}
				if done {
					return nil
				}
			}
		}
	}
}

// pollEvents forwards screen events until the screen is finalised or quit
// closes. PollEvent returns nil once Fini has been called.
func pollEvents(screen tcell.Screen, events chan<- tcell.Event, quit <-chan struct{}) {
	defer close(events)
	for {
		ev := screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case events <- ev:
		case <-quit:
			return
		}
	}
}

// handleKey executes one console action. It reports true when the user
// asked to quit.
func handleKey(ctx context.Context, sess *session.Session, catalog *kb.Catalog, action hud.Action, log logging.Logger) (bool, error) {
	var err error
	switch action {
	case hud.ActionNone:
		return false, nil
	case hud.ActionQuit:
		return true, nil
	case hud.ActionEngage:
		err = sess.Engage(ctx)
	case hud.ActionAbort:
		err = sess.Abort(ctx)
	case hud.ActionReset:
		err = sess.Reset(ctx)
	default:
		u, ok := hud.UpdateFor(action, sess.Settings(), catalog)
		if !ok {
			return false, nil
		}
		if err = sess.Apply(ctx, u); err != nil {
			// Out-of-range steps are dropped; the HUD keeps the last value.
			log.Warn(ctx, "setting rejected", logging.Err(err))
			return false, nil
		}
	}
	return false, err
}
