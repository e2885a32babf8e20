package sim

import (
	"context"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine"
	"github.com/san-kum/boxsim/internal/telemetry"
	"go.uber.org/zap"
)

// Frame summarizes one completed step.
type Frame struct {
	Index      uint64  `json:"frame"`
	Time       float64 `json:"time"`
	Dt         float64 `json:"dt"`
	Entities   int     `json:"entities"`
	MeanHeight float64 `json:"mean_height"`
	GravityOn  bool    `json:"gravity"`
}

type Observer interface {
	OnStep(f Frame)
}

type ObserverFunc func(Frame)

func (f ObserverFunc) OnStep(fr Frame) { f(fr) }

type Loop struct {
	ctx     *Context
	surface engine.Surface
	log     *zap.Logger

	now       func() time.Time
	sleep     func(time.Duration)
	observers []Observer

	frame   uint64
	simTime float64
	last    time.Time
}

type LoopOption func(*Loop)

// WithClock replaces time.Now for delta measurement and pacing.
func WithClock(now func() time.Time) LoopOption {
	return func(l *Loop) { l.now = now }
}

func WithSleep(sleep func(time.Duration)) LoopOption {
	return func(l *Loop) { l.sleep = sleep }
}

func WithObserver(o Observer) LoopOption {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

func NewLoop(ctx *Context, surface engine.Surface, opts ...LoopOption) *Loop {
	l := &Loop{
		ctx:     ctx,
		surface: surface,
		log:     ctx.root.Named("loop"),
		now:     time.Now,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) AddObserver(o Observer) {
	l.observers = append(l.observers, o)
}

// Frames is the number of completed steps.
func (l *Loop) Frames() uint64 { return l.frame }

// PollInputs drains the surface's event queue, keeping arrival order.
func (l *Loop) PollInputs() []Action {
	var actions []Action
	for {
		ev, ok := l.surface.PollEvent()
		if !ok {
			return actions
		}
		if a, ok := ActionFor(ev); ok {
			actions = append(actions, a)
		}
	}
}

// Step applies actions, advances the scene by dt and draws the result.
// Quit actions are ignored here; Run handles them.
func (l *Loop) Step(actions []Action, dt float64) error {
	c := l.ctx
	if c.state != Running {
		return ErrNotRunning
	}

	for _, a := range actions {
		switch a {
		case ActionSpawn:
			id, err := c.Spawn()
			if err != nil {
				return err
			}
			l.log.Debug("spawned", zap.Uint64("entity", uint64(id)))
		case ActionToggleGravity:
			g := c.ToggleGravity()
			if c.GravityEnabled() {
				l.log.Info("gravity on", zap.Float64s("vector", g[:]))
			} else {
				l.log.Info("gravity off")
			}
		}
	}

	if err := c.scene.Simulate(dt); err != nil {
		return err
	}
	if _, err := c.scene.FetchResults(true); err != nil {
		return err
	}
	c.registry.markReady()
	l.frame++
	l.simTime += dt

	f := Frame{
		Index:     l.frame,
		Time:      l.simTime,
		Dt:        dt,
		Entities:  c.registry.Len(),
		GravityOn: c.GravityEnabled(),
	}
	if c.diagnostics != nil {
		c.diagnostics.Publish(telemetry.Sample{
			Frame:    f.Index,
			Time:     f.Time,
			Dt:       dt,
			Entities: f.Entities,
			Gravity:  f.GravityOn,
			GPU:      c.UsingGPU(),
		})
	}
	f.MeanHeight = l.render()
	for _, o := range l.observers {
		o.OnStep(f)
	}
	return nil
}

// render draws every ready entity and returns their mean height.
func (l *Loop) render() float64 {
	c := l.ctx
	vp := c.cfg.Viewport
	l.surface.Clear(engine.White)

	var sum float64
	var n int
	for e := range c.registry.All() {
		if !e.Ready() {
			continue
		}
		pose, err := c.scene.Pose(e.Body)
		if err != nil {
			l.log.Warn("pose unavailable, skipping entity",
				zap.Uint64("entity", uint64(e.ID)), zap.Error(err))
			continue
		}
		l.surface.DrawRect(Project(vp, pose.Position), e.Color)
		sum += pose.Position.Y()
		n++
	}
	l.surface.Present()

	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Project maps a world position to the square drawn for it: x to the right
// of the viewport centre, y up.
func Project(vp config.ViewportConfig, p mgl64.Vec3) engine.Rect {
	cx := p.X()*vp.PixelsPerMetre + float64(vp.Width)/2
	cy := float64(vp.Height)/2 - p.Y()*vp.PixelsPerMetre
	half := vp.BoxPixels / 2
	return engine.Rect{
		X: float32(cx - half),
		Y: float32(cy - half),
		W: float32(vp.BoxPixels),
		H: float32(vp.BoxPixels),
	}
}

// Run steps until a quit action arrives or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.last = l.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := l.now()
		actions := l.PollInputs()
		if slices.Contains(actions, ActionQuit) {
			l.log.Info("quit requested", zap.Uint64("frames", l.frame))
			return nil
		}
		if err := l.Step(actions, l.delta(start)); err != nil {
			return err
		}
		l.pace(start)
	}
}

func (l *Loop) delta(now time.Time) float64 {
	lc := l.ctx.cfg.Loop
	if lc.FixedDt > 0 {
		return lc.FixedDt
	}
	dt := now.Sub(l.last).Seconds()
	l.last = now
	if dt < 0 {
		dt = 0
	}
	if lc.MaxDt > 0 && dt > lc.MaxDt {
		l.log.Debug("clamping frame delta", zap.Float64("dt", dt), zap.Float64("max", lc.MaxDt))
		dt = lc.MaxDt
	}
	return dt
}

func (l *Loop) pace(start time.Time) {
	interval := l.ctx.cfg.Loop.FrameInterval
	if interval <= 0 {
		return
	}
	if elapsed := l.now().Sub(start); elapsed < interval {
		l.sleep(interval - elapsed)
	}
}
