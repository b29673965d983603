// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	World     WorldConfig     `yaml:"world"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Authority AuthorityConfig `yaml:"authority"`
	Grapple   GrappleConfig   `yaml:"grapple"`
	Gathering GatheringConfig `yaml:"gathering"`
	Radiation RadiationConfig `yaml:"radiation"`
	Puddle    PuddleConfig    `yaml:"puddle"`
	Network   NetworkConfig   `yaml:"network"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Scenario  ScenarioConfig  `yaml:"scenario"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// WorldConfig holds simulation world dimensions.
type WorldConfig struct {
	Width  int `yaml:"width"`  // 0 = use screen width
	Height int `yaml:"height"` // 0 = use screen height
}

// PhysicsConfig holds simulation physics parameters.
type PhysicsConfig struct {
	DT             float64 `yaml:"dt"`
	GridCellSize   float64 `yaml:"grid_cell_size"`
	LinearDamping  float64 `yaml:"linear_damping"`  // Fraction of velocity kept per second
	SleepSpeed     float64 `yaml:"sleep_speed"`     // Below this speed a body starts counting toward sleep
	SleepTicks     int     `yaml:"sleep_ticks"`     // Ticks under sleep_speed before a body sleeps
	SolverFraction float64 `yaml:"solver_fraction"` // Cap on per-tick positional correction fraction
}

// AuthorityConfig controls whether this process is the authoritative server.
// A predicting client never deletes entities and never ungrapples on a missing joint.
type AuthorityConfig struct {
	Server bool `yaml:"server"`
	// RollbackTicks is how many past ticks a predicting client re-simulates
	// every tick. 0 disables prediction replay.
	RollbackTicks int `yaml:"rollback_ticks"`
}

// GrappleConfig holds grappling gun tuning.
type GrappleConfig struct {
	ReelRate              float64 `yaml:"reel_rate"`                // Rope shortened per second while reeling
	ReelForce             float64 `yaml:"reel_force"`               // Impulse per second pulling both ends together
	RopeMargin            float64 `yaml:"rope_margin"`              // Slack tolerance for break and pull checks
	RopeFullyReeledMargin float64 `yaml:"rope_fully_reeled_margin"` // Reeling stops within this of min length
	RopeMinLength         float64 `yaml:"rope_min_length"`
	RopeMaxLength         float64 `yaml:"rope_max_length"` // Embeds further than this break instantly
	RopeStiffness         float64 `yaml:"rope_stiffness"`
	RopeBreakpoint        float64 `yaml:"rope_breakpoint"` // Correction beyond this disables the joint
	ProjectileSpeed       float64 `yaml:"projectile_speed"`
	ProjectileRadius      float64 `yaml:"projectile_radius"`
	ProjectileLifetime    float64 `yaml:"projectile_lifetime"` // Seconds before an unembedded hook expires
	Ammo                  int     `yaml:"ammo"`
}

// GatheringConfig holds gathering projectile parameters.
type GatheringConfig struct {
	Amount          int     `yaml:"amount"` // Gathers per projectile
	ProjectileSpeed float64 `yaml:"projectile_speed"`
}

// RadiationConfig holds chain radiation parameters.
type RadiationConfig struct {
	BaseIntensity        float64 `yaml:"base_intensity"`
	Coefficient          float64 `yaml:"coefficient"`
	ExplosionThreshold   float64 `yaml:"explosion_threshold"`
	TotalIntensity       float64 `yaml:"total_intensity"`
	IntensitySlope       float64 `yaml:"intensity_slope"`
	MaxIntensity         float64 `yaml:"max_intensity"`
	ChainExplosionRadius float64 `yaml:"chain_explosion_radius"`
	SourceRange          float64 `yaml:"source_range"` // Receivers beyond this ignore a source
	FalloffUnit          float64 `yaml:"falloff_unit"` // Distance at which inverse-square falloff starts
	UpdateInterval       float64 `yaml:"update_interval"`
}

// PuddleConfig holds puddle parameters.
type PuddleConfig struct {
	OverflowVolume    float64 `yaml:"overflow_volume"`
	OverflowThreshold float64 `yaml:"overflow_threshold"`
	TransferTolerance float64 `yaml:"transfer_tolerance"`
	DefaultSlippery   float64 `yaml:"default_slippery"`
	UnitsPerVolume    float64 `yaml:"units_per_volume"` // Puddle radius grows with sqrt(volume) * this
}

// NetworkConfig holds the reel request transport settings.
type NetworkConfig struct {
	Listen        string  `yaml:"listen"` // Empty disables the websocket server
	InboxSize     int     `yaml:"inbox_size"`
	StateInterval float64 `yaml:"state_interval"` // Seconds between state broadcasts
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// ScenarioConfig controls the demo world spawned at startup.
type ScenarioConfig struct {
	Anchors   int  `yaml:"anchors"`
	Rocks     int  `yaml:"rocks"`
	Reactors  int  `yaml:"reactors"`
	Puddles   int  `yaml:"puddles"`
	Autopilot bool `yaml:"autopilot"` // Scripted players (headless runs)
	Player    bool `yaml:"player"`    // Spawn a keyboard-driven player in windowed mode
	// Weightless actors can only steer while a grappling rope is relayed onto them.
	Weightless bool `yaml:"weightless"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	WorldW      float64 // Effective world width
	WorldH      float64 // Effective world height
	TicksPerSec int     // round(1/dt)
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

// Defaults returns a fresh copy of the embedded defaults.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.computeDerived()

	return cfg, nil
}

// Validate reports every out-of-range parameter at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Physics.DT > 0, "physics.dt must be positive, got %v", c.Physics.DT)
	check(c.Physics.GridCellSize > 0, "physics.grid_cell_size must be positive, got %v", c.Physics.GridCellSize)
	check(c.Physics.LinearDamping > 0 && c.Physics.LinearDamping <= 1, "physics.linear_damping must be in (0, 1], got %v", c.Physics.LinearDamping)

	g := c.Grapple
	check(g.ReelRate >= 0, "grapple.reel_rate must not be negative, got %v", g.ReelRate)
	check(g.ReelForce >= 0, "grapple.reel_force must not be negative, got %v", g.ReelForce)
	check(g.RopeMargin >= 0, "grapple.rope_margin must not be negative, got %v", g.RopeMargin)
	check(g.RopeFullyReeledMargin >= 0, "grapple.rope_fully_reeled_margin must not be negative, got %v", g.RopeFullyReeledMargin)
	check(g.RopeMinLength >= 0, "grapple.rope_min_length must not be negative, got %v", g.RopeMinLength)
	check(g.RopeMinLength < g.RopeMaxLength, "grapple.rope_min_length (%v) must be below rope_max_length (%v)", g.RopeMinLength, g.RopeMaxLength)
	check(g.Ammo > 0, "grapple.ammo must be positive, got %v", g.Ammo)

	check(c.Radiation.ExplosionThreshold > 0, "radiation.explosion_threshold must be positive, got %v", c.Radiation.ExplosionThreshold)
	check(c.Puddle.OverflowVolume <= c.Puddle.OverflowThreshold, "puddle.overflow_volume (%v) must not exceed overflow_threshold (%v)", c.Puddle.OverflowVolume, c.Puddle.OverflowThreshold)
	check(c.Radiation.FalloffUnit > 0, "radiation.falloff_unit must be positive, got %v", c.Radiation.FalloffUnit)
	check(c.Authority.RollbackTicks >= 0, "authority.rollback_ticks must not be negative, got %v", c.Authority.RollbackTicks)
	check(c.Authority.RollbackTicks == 0 || !c.Authority.Server, "authority.rollback_ticks requires a predicting client (server: false)")
	check(c.Network.InboxSize > 0, "network.inbox_size must be positive, got %v", c.Network.InboxSize)

	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	worldW := c.World.Width
	if worldW == 0 {
		worldW = c.Screen.Width
	}
	worldH := c.World.Height
	if worldH == 0 {
		worldH = c.Screen.Height
	}
	c.Derived.WorldW = float64(worldW)
	c.Derived.WorldH = float64(worldH)
	c.Derived.TicksPerSec = int(1/c.Physics.DT + 0.5)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
