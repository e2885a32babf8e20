// Package metrics computes run-level figures from the per-step frame
// summaries of a loop.
package metrics

import "github.com/san-kum/boxsim/internal/sim"

// Metric is a loop observer that reduces frames to one number.
type Metric interface {
	sim.Observer
	Name() string
	Value() float64
	Reset()
}

// Collect reads every metric into a map keyed by name.
func Collect(ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// Standard is the set recorded for headless runs.
func Standard(groundTolerance, settleEpsilon float64, settleFrames int) []Metric {
	return []Metric{
		NewStability(groundTolerance),
		NewSettling(settleEpsilon, settleFrames),
	}
}
