// Package automation runs simulations without a display: scripted scenarios
// loaded from YAML and parameter sweeps over the config.
package automation

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"

	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine"
	"github.com/san-kum/boxsim/internal/metrics"
	"github.com/san-kum/boxsim/internal/render"
	"github.com/san-kum/boxsim/internal/sim"
	"github.com/san-kum/boxsim/internal/storage"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	groundTolerance = 0.5
	settleEpsilon   = 1e-3
	settleFrames    = 30
)

// Scenario defines a scripted simulation sequence.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Preset      string         `yaml:"preset"`
	Frames      int            `yaml:"frames"`
	Dt          float64        `yaml:"dt"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep fires Count copies of Action before frame Frame is simulated.
type ScenarioStep struct {
	Frame  int    `yaml:"frame"`
	Action string `yaml:"action"`
	Count  int    `yaml:"count"`
}

var scenarioKeys = map[string]engine.Event{
	"spawn":   engine.KeyDown(engine.KeySpace),
	"gravity": engine.KeyDown(engine.KeyG),
	"quit":    engine.Quit(),
}

// LoadScenario loads and validates a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	var errs []error
	if s.Frames <= 0 {
		errs = append(errs, fmt.Errorf("frames must be positive, got %d", s.Frames))
	}
	if s.Dt <= 0 {
		errs = append(errs, fmt.Errorf("dt must be positive, got %g", s.Dt))
	}
	if s.Preset != "" && config.GetPreset(s.Preset) == nil {
		errs = append(errs, fmt.Errorf("unknown preset %q", s.Preset))
	}
	for i, step := range s.Steps {
		if _, ok := scenarioKeys[step.Action]; !ok {
			errs = append(errs, fmt.Errorf("step %d: unknown action %q", i+1, step.Action))
		}
		if step.Frame < 0 || step.Frame >= s.Frames {
			errs = append(errs, fmt.Errorf("step %d: frame %d outside [0, %d)", i+1, step.Frame, s.Frames))
		}
	}
	return errors.Join(errs...)
}

// Script turns the steps into surface events.
func (s *Scenario) Script() []render.HeadlessOption {
	opts := make([]render.HeadlessOption, 0, len(s.Steps))
	for _, step := range s.Steps {
		ev := scenarioKeys[step.Action]
		for n := max(step.Count, 1); n > 0; n-- {
			opts = append(opts, render.WithEvents(step.Frame, ev))
		}
	}
	return opts
}

// Override adjusts a config after its preset has been applied.
type Override func(*config.Config)

// Config is the scenario's preset, or a copy of base when it names none,
// with overrides applied on top either way.
func (s *Scenario) Config(base *config.Config, overrides ...Override) *config.Config {
	var cfg *config.Config
	if s.Preset != "" {
		cfg = config.GetPreset(s.Preset)
	}
	if cfg == nil {
		c := *base
		cfg = &c
	}
	for _, o := range overrides {
		o(cfg)
	}
	return cfg
}

// SpawnEvery scripts one spawn every n frames, starting at frame n.
func SpawnEvery(n, frames int) []render.HeadlessOption {
	if n <= 0 {
		return nil
	}
	var opts []render.HeadlessOption
	for f := n; f < frames; f += n {
		opts = append(opts, render.WithEvents(f, engine.KeyDown(engine.KeySpace)))
	}
	return opts
}

// Result is one finished headless run.
type Result struct {
	Frames  []sim.Frame
	Metrics map[string]float64
	GPU     bool
	// Config is what the run was initialized with.
	Config config.Config
	// Last is what the final frame drew.
	Last render.Frame
}

// Headless runs cfg for frames steps of cfg.Loop.FixedDt on physics, feeding
// script as input. The simulation is shut down before returning.
func Headless(ctx context.Context, cfg *config.Config, physics engine.Physics, log *zap.Logger, frames int, script ...render.HeadlessOption) (*Result, error) {
	if cfg.Loop.FixedDt <= 0 {
		return nil, fmt.Errorf("headless run needs a fixed dt, got %g", cfg.Loop.FixedDt)
	}
	run := *cfg
	run.Loop.FrameInterval = 0

	s, err := sim.Initialize(&run, sim.Deps{Physics: physics, Log: log})
	if err != nil {
		return nil, err
	}

	surface := render.NewHeadless(append(script, render.QuitAfter(frames))...)
	rec := &storage.Recorder{}
	ms := metrics.Standard(groundTolerance, settleEpsilon, settleFrames)
	opts := []sim.LoopOption{sim.WithObserver(rec)}
	for _, m := range ms {
		opts = append(opts, sim.WithObserver(m))
	}

	runErr := sim.NewLoop(s, surface, opts...).Run(ctx)
	if err := errors.Join(runErr, s.Shutdown(), surface.Close()); err != nil {
		return nil, err
	}

	summary := storage.Summarize(rec.Samples)
	maps.Copy(summary, metrics.Collect(ms...))
	return &Result{
		Frames:  rec.Samples,
		Metrics: summary,
		GPU:     s.UsingGPU(),
		Config:  *cfg,
		Last:    surface.Last(),
	}, nil
}

// RunScenario executes a scenario on top of base. overrides are applied after
// the scenario's preset.
func RunScenario(ctx context.Context, scenario *Scenario, base *config.Config, physics engine.Physics, log *zap.Logger, overrides ...Override) (*Result, error) {
	cfg := scenario.Config(base, overrides...)
	cfg.Loop.FixedDt = scenario.Dt
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info("running scenario", zap.String("name", scenario.Name), zap.Int("frames", scenario.Frames))
	return Headless(ctx, cfg, physics, log, scenario.Frames, scenario.Script()...)
}
