package automation

import (
	"context"
	"fmt"
	"sort"

	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine"
	"go.uber.org/zap"
)

// Sweepable lists the config values a sweep can vary.
var Sweepable = map[string]func(*config.Config, float64){
	"restitution": func(c *config.Config, v float64) { c.Material.Restitution = v },
	"friction": func(c *config.Config, v float64) {
		c.Material.StaticFriction = v
		c.Material.DynamicFriction = v
	},
	"gravity": func(c *config.Config, v float64) { c.Gravity.Vector[1] = v },
	"height":  func(c *config.Config, v float64) { c.Spawn.Height = v },
	"mass":    func(c *config.Config, v float64) { c.Spawn.Mass = v },
}

func SweepParams() []string {
	names := make([]string, 0, len(Sweepable))
	for name := range Sweepable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParameterSweep runs one headless simulation per value of Param, evenly
// spaced over [Min, Max].
type ParameterSweep struct {
	Param    string
	Min, Max float64
	NumSteps int
	Frames   int
	Dt       float64
}

type SweepResult struct {
	ParamValue float64
	Metrics    map[string]float64
}

// RunSweep executes a parameter sweep. newPhysics is called once per run.
func RunSweep(ctx context.Context, sweep *ParameterSweep, base *config.Config, newPhysics func() engine.Physics, log *zap.Logger) ([]SweepResult, error) {
	set, ok := Sweepable[sweep.Param]
	if !ok {
		return nil, fmt.Errorf("unknown sweep parameter %q (available: %v)", sweep.Param, SweepParams())
	}
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("sweep needs at least one step, got %d", sweep.NumSteps)
	}

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.Max - sweep.Min) / float64(sweep.NumSteps-1)
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i := 0; i < sweep.NumSteps; i++ {
		value := sweep.Min + float64(i)*paramStep
		cfg := *base
		set(&cfg, value)
		cfg.Loop.FixedDt = sweep.Dt
		if err := cfg.Validate(); err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.Param, value, err)
		}

		res, err := Headless(ctx, &cfg, newPhysics(), log, sweep.Frames)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.Param, value, err)
		}
		results = append(results, SweepResult{ParamValue: value, Metrics: res.Metrics})
		log.Debug("sweep step done", zap.Int("step", i+1), zap.String("param", sweep.Param), zap.Float64("value", value))
	}
	return results, nil
}
