// Package config provides configuration loading and access for the simulator.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/pathfinder/events"
	"github.com/pthm-cable/pathfinder/grid"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidConfig is wrapped by Validate failures.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation   SimulationConfig   `yaml:"simulation"`
	Population   PopulationConfig   `yaml:"population"`
	Reproduction ReproductionConfig `yaml:"reproduction"`
	Grid         GridConfig         `yaml:"grid"`
	Random       RandomConfig       `yaml:"random"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Persistence  PersistenceConfig  `yaml:"persistence"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds run-level settings.
type SimulationConfig struct {
	Horizon   float64 `yaml:"horizon"`   // simulation end time
	Initial   int     `yaml:"initial"`   // agents seeded on the start cell
	Seed      int64   `yaml:"seed"`      // 0 = derive from the clock
	Snapshots int     `yaml:"snapshots"` // observation boundaries within the horizon
}

// PopulationConfig holds the population parameters.
type PopulationConfig struct {
	MaxSize int     `yaml:"max_size"`
	K       int     `yaml:"k"`
	Elite   int     `yaml:"elite"` // 0 = K
	Mu      float64 `yaml:"mu"`
	Delta   float64 `yaml:"delta"`
	Ro      float64 `yaml:"ro"`
}

// ReproductionConfig holds reproduction scheduling settings.
type ReproductionConfig struct {
	ParentCadence string `yaml:"parent_cadence"` // move | reproduction
}

// GridConfig describes the map.
type GridConfig struct {
	Rows      int         `yaml:"rows"`
	Cols      int         `yaml:"cols"`
	Start     grid.Cell   `yaml:"start"`
	Goal      grid.Cell   `yaml:"goal"`
	Zones     []grid.Zone `yaml:"zones"`
	Obstacles []grid.Cell `yaml:"obstacles"`
}

// RandomConfig drives random scenario generation.
type RandomConfig struct {
	Zones          int     `yaml:"zones"`
	Obstacles      int     `yaml:"obstacles"`
	MaxZoneCost    int     `yaml:"max_zone_cost"`
	Layout         string  `yaml:"layout"` // uniform | noise
	NoiseFrequency float64 `yaml:"noise_frequency"`
	NoiseOctaves   int     `yaml:"noise_octaves"`
}

// TelemetryConfig holds output and milestone settings.
type TelemetryConfig struct {
	OutputDir        string  `yaml:"output_dir"`
	LogStats         bool    `yaml:"log_stats"`
	StagnationWindow int     `yaml:"stagnation_window"`
	CrashFraction    float64 `yaml:"crash_fraction"`
}

// PersistenceConfig holds the run store location.
type PersistenceConfig struct {
	DBPath string `yaml:"db_path"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Cadence          events.Cadence
	SnapshotInterval float64 // Horizon / Snapshots
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns the embedded default configuration.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize validates the config and recomputes derived values. Call it
// after changing fields by hand.
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// Validate checks settings that are not validated by the packages that
// consume them. Grid geometry is checked by grid.New and population
// parameters by population.New.
func (c *Config) Validate() error {
	h := c.Simulation.Horizon
	switch {
	case !(h > 0) || math.IsInf(h, 0):
		return fmt.Errorf("%w: horizon %v must be finite and positive", ErrInvalidConfig, h)
	case c.Simulation.Initial < 0:
		return fmt.Errorf("%w: initial population %d is negative", ErrInvalidConfig, c.Simulation.Initial)
	case c.Simulation.Snapshots < 1:
		return fmt.Errorf("%w: snapshots %d must be at least 1", ErrInvalidConfig, c.Simulation.Snapshots)
	case c.Random.Zones < 0 || c.Random.Obstacles < 0:
		return fmt.Errorf("%w: random counts must not be negative", ErrInvalidConfig)
	case c.Random.MaxZoneCost < 1:
		return fmt.Errorf("%w: max zone cost %d must be at least 1", ErrInvalidConfig, c.Random.MaxZoneCost)
	}
	if _, err := events.ParseCadence(c.Reproduction.ParentCadence); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := parseLayout(c.Random.Layout); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Cadence, _ = events.ParseCadence(c.Reproduction.ParentCadence)
	c.Derived.SnapshotInterval = c.Simulation.Horizon / float64(c.Simulation.Snapshots)
}

// BuildGrid constructs the grid described by the config.
func (c *Config) BuildGrid() (*grid.Grid, error) {
	g := c.Grid
	return grid.New(g.Rows, g.Cols, g.Start, g.Goal, g.Zones, g.Obstacles)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Grid.Zones = append([]grid.Zone(nil), c.Grid.Zones...)
	out.Grid.Obstacles = append([]grid.Cell(nil), c.Grid.Obstacles...)
	return &out
}

// YAML returns the configuration encoded as YAML.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
