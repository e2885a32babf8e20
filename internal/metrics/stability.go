package metrics

import "github.com/san-kum/boxsim/internal/sim"

// Stability is the fraction of frames whose mean box height stays above
// -threshold. Boxes sinking through the ground pull it below one.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) OnStep(f sim.Frame) {
	if f.Entities == 0 {
		return
	}
	s.samples++
	if f.MeanHeight < -s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
