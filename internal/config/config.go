// Package config loads engagement simulator settings from defaults, an
// optional config file and ENGAGEMENT_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/engagement-simulator/internal/logging"
	"github.com/signalsfoundry/engagement-simulator/internal/observability"
	"github.com/signalsfoundry/engagement-simulator/kb"
	"github.com/signalsfoundry/engagement-simulator/model"
	"github.com/signalsfoundry/engagement-simulator/timectrl"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "ENGAGEMENT"

// ErrOutOfRange is returned for speed or illumination values outside their
// permitted ranges.
var ErrOutOfRange = model.ErrOutOfRange

// ErrInvalid is returned for malformed non-numeric settings.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full process configuration.
type Config struct {
	Simulation Simulation `mapstructure:"simulation"`
	Log        Log        `mapstructure:"log"`
	Server     Server     `mapstructure:"server"`
	Tracing    Tracing    `mapstructure:"tracing"`
}

// Simulation holds the initial engagement inputs and clock settings.
type Simulation struct {
	MissileSpeed float64 `mapstructure:"missileSpeed"`
	TargetSpeed  float64 `mapstructure:"targetSpeed"`
	Scenario     string  `mapstructure:"scenario"`
	Target       string  `mapstructure:"target"`
	Environment  string  `mapstructure:"environment"`
	// Illumination overrides the environment preset's sun intensity when set.
	Illumination *float64      `mapstructure:"illumination"`
	TickPeriod   time.Duration `mapstructure:"tickPeriod"`
	Mode         string        `mapstructure:"mode"`
	Seed         int64         `mapstructure:"seed"`
}

type Log struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"addSource"`
}

type Server struct {
	GRPCAddr    string `mapstructure:"grpcAddr"`
	FeedAddr    string `mapstructure:"feedAddr"`
	MetricsAddr string `mapstructure:"metricsAddr"`
}

type Tracing struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"serviceName"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sampleRatio"`
}

// New returns a viper instance carrying the defaults and env bindings.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("simulation.missileSpeed", 600.0)
	v.SetDefault("simulation.targetSpeed", 30.0)
	v.SetDefault("simulation.scenario", string(model.ScenarioLinear))
	v.SetDefault("simulation.target", string(model.TargetTank))
	v.SetDefault("simulation.environment", string(model.EnvironmentClear))
	v.SetDefault("simulation.tickPeriod", "20ms")
	v.SetDefault("simulation.mode", "realtime")
	v.SetDefault("simulation.seed", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.addSource", false)

	v.SetDefault("server.grpcAddr", ":50061")
	v.SetDefault("server.feedAddr", ":8080")
	v.SetDefault("server.metricsAddr", ":9090")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "engagement-sim")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sampleRatio", 1.0)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default, so AutomaticEnv alone would not surface it on Unmarshal.
	_ = v.BindEnv("simulation.illumination")

	return v
}

// Load reads configuration. An empty path skips the config file.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges, step alignment and catalog ids.
func (c *Config) Validate() error {
	s := c.Simulation
	if err := model.MissileSpeedRange.CheckStep(s.MissileSpeed); err != nil {
		return err
	}
	if err := model.TargetSpeedRange.CheckStep(s.TargetSpeed); err != nil {
		return err
	}
	if s.Illumination != nil {
		if err := model.IlluminationRange.CheckStep(*s.Illumination); err != nil {
			return err
		}
	}
	if _, err := model.ParseScenarioKind(s.Scenario); err != nil {
		return err
	}
	if _, err := kb.TargetFor(c.TargetID()); err != nil {
		return err
	}
	if _, err := kb.PresetFor(c.EnvironmentID()); err != nil {
		return err
	}
	if s.TickPeriod <= 0 {
		return fmt.Errorf("%w: tick period %v must be positive", ErrInvalid, s.TickPeriod)
	}
	if _, err := c.ClockMode(); err != nil {
		return err
	}
	return nil
}

// ScenarioKind returns the parsed scenario; call after Validate.
func (c *Config) ScenarioKind() model.ScenarioKind {
	kind, _ := model.ParseScenarioKind(c.Simulation.Scenario)
	return kind
}

func (c *Config) TargetID() model.TargetID {
	return model.TargetID(strings.ToLower(strings.TrimSpace(c.Simulation.Target)))
}

func (c *Config) EnvironmentID() model.EnvironmentID {
	return model.EnvironmentID(strings.ToLower(strings.TrimSpace(c.Simulation.Environment)))
}

// Settings resolves the initial engagement inputs. An unset illumination
// takes the environment preset's sun intensity. Call after Validate.
func (c *Config) Settings() model.Settings {
	s := model.Settings{
		MissileSpeed: c.Simulation.MissileSpeed,
		TargetSpeed:  c.Simulation.TargetSpeed,
		Scenario:     c.ScenarioKind(),
		Target:       c.TargetID(),
		Environment:  c.EnvironmentID(),
	}
	if c.Simulation.Illumination != nil {
		s.Illumination = *c.Simulation.Illumination
	} else if preset, err := kb.PresetFor(s.Environment); err == nil {
		s.Illumination = preset.SunIntensity
	}
	return s
}

// ClockMode maps simulation.mode onto the time controller's mode.
func (c *Config) ClockMode() (timectrl.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(c.Simulation.Mode)) {
	case "", "realtime", "real-time":
		return timectrl.RealTime, nil
	case "accelerated":
		return timectrl.Accelerated, nil
	default:
		return timectrl.RealTime, fmt.Errorf("%w: unknown clock mode %q", ErrInvalid, c.Simulation.Mode)
	}
}

// Logging converts the log section for logging.New.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:     c.Log.Level,
		Format:    c.Log.Format,
		AddSource: c.Log.AddSource,
	}
}

// TracingConfig converts the tracing section for observability.InitTracing.
func (c *Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}
