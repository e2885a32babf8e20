package metrics

import (
	"math"

	"github.com/san-kum/boxsim/internal/sim"
)

// Settling is the simulated time at which the mean box height last started
// a run of window frames changing by less than epsilon per frame. It is -1
// while the boxes have not come to rest. Spawns restart the count.
type Settling struct {
	name    string
	epsilon float64
	window  int

	prev     float64
	entities int
	quiet    int
	since    float64
	settled  float64
}

func NewSettling(epsilon float64, window int) *Settling {
	s := &Settling{name: "settle_time", epsilon: epsilon, window: max(window, 1)}
	s.Reset()
	return s
}

func (s *Settling) Name() string {
	return s.name
}

func (s *Settling) OnStep(f sim.Frame) {
	if f.Entities == 0 {
		return
	}
	if f.Entities != s.entities || math.Abs(f.MeanHeight-s.prev) >= s.epsilon {
		s.entities = f.Entities
		s.prev = f.MeanHeight
		s.quiet = 0
		s.since = f.Time
		s.settled = -1
		return
	}
	s.prev = f.MeanHeight
	s.quiet++
	if s.quiet >= s.window && s.settled < 0 {
		s.settled = s.since
	}
}

func (s *Settling) Value() float64 {
	return s.settled
}

func (s *Settling) Reset() {
	s.prev = math.NaN()
	s.entities = 0
	s.quiet = 0
	s.since = 0
	s.settled = -1
}
