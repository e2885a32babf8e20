package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

const (
	DefaultGravityY        = -9.81
	DefaultFriction        = 0.5
	DefaultRestitution     = 0.8
	DefaultSpawnExtent     = 5.0
	DefaultSpawnHeight     = 10.0
	DefaultHalfExtent      = 0.5
	DefaultMass            = 1.0
	DefaultWorkers         = 2
	DefaultWidth           = 800
	DefaultHeight          = 600
	DefaultPixelsPerMetre  = 20.0
	DefaultBoxPixels       = 20.0
	DefaultFrameInterval   = 16 * time.Millisecond
	DefaultMaxDt           = 0.1
	DefaultInitialBoxes    = 1
	DefaultDiagnosticsPath = "/diagnostics"
)

type Config struct {
	Gravity     GravityConfig     `yaml:"gravity"`
	Material    MaterialConfig    `yaml:"material"`
	Spawn       SpawnConfig       `yaml:"spawn"`
	Engine      EngineConfig      `yaml:"engine"`
	Viewport    ViewportConfig    `yaml:"viewport"`
	Loop        LoopConfig        `yaml:"loop"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Seed        int64             `yaml:"seed"`
}

type GravityConfig struct {
	Enabled bool       `yaml:"enabled"`
	Vector  [3]float64 `yaml:"vector,flow"`
}

type MaterialConfig struct {
	StaticFriction  float64 `yaml:"static_friction"`
	DynamicFriction float64 `yaml:"dynamic_friction"`
	Restitution     float64 `yaml:"restitution"`
}

// SpawnConfig bounds new boxes to [-ExtentX, ExtentX] × [-ExtentZ, ExtentZ]
// at Height.
type SpawnConfig struct {
	ExtentX    float64 `yaml:"extent_x"`
	ExtentZ    float64 `yaml:"extent_z"`
	Height     float64 `yaml:"height"`
	HalfExtent float64 `yaml:"half_extent"`
	Mass       float64 `yaml:"mass"`
	Initial    int     `yaml:"initial"`
}

type EngineConfig struct {
	Workers int  `yaml:"workers"`
	GPU     bool `yaml:"gpu"`
}

type ViewportConfig struct {
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	PixelsPerMetre float64 `yaml:"pixels_per_metre"`
	BoxPixels      float64 `yaml:"box_pixels"`
}

// LoopConfig controls frame timing. FixedDt of zero means wall-clock deltas;
// MaxDt of zero disables clamping.
type LoopConfig struct {
	FixedDt       float64       `yaml:"fixed_dt"`
	MaxDt         float64       `yaml:"max_dt"`
	FrameInterval time.Duration `yaml:"frame_interval"`
}

type DiagnosticsConfig struct {
	// Address is a ws:// URL; empty disables the connection.
	Address string `yaml:"address"`
}

// DiagnosticsURL expands a bare host:port into a websocket URL on
// DefaultDiagnosticsPath. Anything with a scheme, and the empty string, is
// returned unchanged.
func DiagnosticsURL(addr string) string {
	if addr == "" || strings.Contains(addr, "://") {
		return addr
	}
	return "ws://" + addr + DefaultDiagnosticsPath
}

func DefaultConfig() *Config {
	return &Config{
		Gravity: GravityConfig{
			Enabled: true,
			Vector:  [3]float64{0, DefaultGravityY, 0},
		},
		Material: MaterialConfig{
			StaticFriction:  DefaultFriction,
			DynamicFriction: DefaultFriction,
			Restitution:     DefaultRestitution,
		},
		Spawn: SpawnConfig{
			ExtentX:    DefaultSpawnExtent,
			ExtentZ:    DefaultSpawnExtent,
			Height:     DefaultSpawnHeight,
			HalfExtent: DefaultHalfExtent,
			Mass:       DefaultMass,
			Initial:    DefaultInitialBoxes,
		},
		Engine: EngineConfig{
			Workers: DefaultWorkers,
			GPU:     true,
		},
		Viewport: ViewportConfig{
			Width:          DefaultWidth,
			Height:         DefaultHeight,
			PixelsPerMetre: DefaultPixelsPerMetre,
			BoxPixels:      DefaultBoxPixels,
		},
		Loop: LoopConfig{
			MaxDt:         DefaultMaxDt,
			FrameInterval: DefaultFrameInterval,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Spawn.ExtentX < 0 || c.Spawn.ExtentZ < 0 {
		errs = append(errs, errors.New("spawn extents must not be negative"))
	}
	if c.Spawn.HalfExtent <= 0 {
		errs = append(errs, fmt.Errorf("spawn.half_extent must be positive, got %g", c.Spawn.HalfExtent))
	}
	if c.Spawn.Mass <= 0 {
		errs = append(errs, fmt.Errorf("spawn.mass must be positive, got %g", c.Spawn.Mass))
	}
	if c.Spawn.Initial < 0 {
		errs = append(errs, fmt.Errorf("spawn.initial must not be negative, got %d", c.Spawn.Initial))
	}
	if c.Engine.Workers < 1 {
		errs = append(errs, fmt.Errorf("engine.workers must be at least 1, got %d", c.Engine.Workers))
	}
	if c.Material.StaticFriction < 0 || c.Material.DynamicFriction < 0 {
		errs = append(errs, fmt.Errorf("material friction must not be negative, got static %g dynamic %g",
			c.Material.StaticFriction, c.Material.DynamicFriction))
	}
	if c.Material.Restitution < 0 {
		errs = append(errs, fmt.Errorf("material.restitution must not be negative, got %g", c.Material.Restitution))
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		errs = append(errs, fmt.Errorf("viewport must be positive, got %dx%d", c.Viewport.Width, c.Viewport.Height))
	}
	if c.Loop.FixedDt < 0 || c.Loop.MaxDt < 0 {
		errs = append(errs, errors.New("loop.fixed_dt and loop.max_dt must not be negative"))
	}
	return errors.Join(errs...)
}

// GravityVector is the configured gravity, regardless of the enabled flag.
func (c *Config) GravityVector() mgl64.Vec3 {
	return mgl64.Vec3(c.Gravity.Vector)
}

// ActiveGravity is what the scene should start with.
func (c *Config) ActiveGravity() mgl64.Vec3 {
	if !c.Gravity.Enabled {
		return mgl64.Vec3{}
	}
	return c.GravityVector()
}
