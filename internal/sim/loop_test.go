package sim_test

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine"
	"github.com/san-kum/boxsim/internal/engine/enginetest"
	"github.com/san-kum/boxsim/internal/render"
	"github.com/san-kum/boxsim/internal/sim"
)

// stepClock advances by step on every read.
func stepClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

var _ = Describe("Loop", func() {
	var (
		p       *enginetest.Physics
		cfg     *config.Config
		ctx     *sim.Context
		surface *render.Headless
	)

	BeforeEach(func() {
		p = enginetest.NewPhysics()
		cfg = testConfig()
		surface = render.NewHeadless()
	})

	JustBeforeEach(func() {
		ctx = mustInit(cfg, testDeps(p))
		DeferCleanup(func() {
			if ctx.State() == sim.Running {
				Expect(ctx.Shutdown()).To(Succeed())
			}
		})
	})

	Describe("PollInputs", func() {
		It("maps events to actions in arrival order and drops the rest", func() {
			for _, ev := range []engine.Event{
				engine.KeyDown(engine.KeyUnknown),
				engine.KeyDown(engine.KeySpace),
				engine.Quit(),
				engine.KeyDown(engine.KeyG),
				{Kind: engine.EventResize},
				engine.KeyDown(engine.KeyUnknown),
			} {
				surface.Push(ev)
			}
			loop := sim.NewLoop(ctx, surface)
			Expect(loop.PollInputs()).To(Equal([]sim.Action{
				sim.ActionSpawn, sim.ActionQuit, sim.ActionToggleGravity,
			}))
			Expect(loop.PollInputs()).To(BeEmpty())
		})
	})

	Describe("Step", func() {
		It("spawns inside the spawn area", func() {
			loop := sim.NewLoop(ctx, surface)
			actions := make([]sim.Action, 50)
			for i := range actions {
				actions[i] = sim.ActionSpawn
			}
			Expect(loop.Step(actions, 0)).To(Succeed())

			Expect(p.Bodies).To(HaveLen(50))
			for _, b := range p.Bodies {
				pos := b.Pose.Position
				Expect(pos.X()).To(BeNumerically(">=", -cfg.Spawn.ExtentX))
				Expect(pos.X()).To(BeNumerically("<=", cfg.Spawn.ExtentX))
				Expect(pos.Z()).To(BeNumerically(">=", -cfg.Spawn.ExtentZ))
				Expect(pos.Z()).To(BeNumerically("<=", cfg.Spawn.ExtentZ))
				Expect(pos.Y()).To(Equal(cfg.Spawn.Height))
				Expect(b.Geometry.HalfExtents).To(Equal(mgl64.Vec3{0.5, 0.5, 0.5}))
				Expect(b.Mass).To(Equal(1.0))
			}
			ctx.Registry().ForEach(func(e sim.Entity) bool {
				Expect(e.Color.A).To(Equal(uint8(255)))
				return true
			})
		})

		It("toggles gravity off and back on", func() {
			loop := sim.NewLoop(ctx, surface)
			original := p.Scene().Gravity()
			Expect(original).To(Equal(mgl64.Vec3{0, -9.81, 0}))

			Expect(loop.Step([]sim.Action{sim.ActionToggleGravity}, 0)).To(Succeed())
			Expect(p.Scene().Gravity()).To(Equal(mgl64.Vec3{}))
			Expect(ctx.GravityEnabled()).To(BeFalse())

			Expect(loop.Step([]sim.Action{sim.ActionToggleGravity}, 0)).To(Succeed())
			Expect(p.Scene().Gravity()).To(Equal(original))
			Expect(p.Gravity).To(HaveLen(2))
		})

		It("changes gravity before simulating", func() {
			loop := sim.NewLoop(ctx, surface)
			Expect(loop.Step([]sim.Action{sim.ActionSpawn}, 0)).To(Succeed())
			h := engine.BodyHandle(1)
			before, err := p.Scene().Pose(h)
			Expect(err).NotTo(HaveOccurred())

			Expect(loop.Step([]sim.Action{sim.ActionToggleGravity}, 1)).To(Succeed())
			after, err := p.Scene().Pose(h)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))

			Expect(loop.Step([]sim.Action{sim.ActionToggleGravity}, 1)).To(Succeed())
			moved, err := p.Scene().Pose(h)
			Expect(err).NotTo(HaveOccurred())
			Expect(moved.Position.Y()).To(BeNumerically("~", before.Position.Y()-9.81, 1e-9))
		})

		Context("with initial entities", func() {
			BeforeEach(func() {
				cfg.Spawn.Initial = 2
			})

			It("simulates and fetches exactly once for a zero delta", func() {
				var before []engine.Pose
				ctx.Registry().ForEach(func(e sim.Entity) bool {
					pose, err := p.Scene().Pose(e.Body)
					Expect(err).NotTo(HaveOccurred())
					before = append(before, pose)
					return true
				})

				Expect(sim.NewLoop(ctx, surface).Step(nil, 0)).To(Succeed())
				Expect(p.Simulates).To(Equal([]float64{0}))
				Expect(p.Fetches).To(Equal(1))

				var after []engine.Pose
				ctx.Registry().ForEach(func(e sim.Entity) bool {
					pose, err := p.Scene().Pose(e.Body)
					Expect(err).NotTo(HaveOccurred())
					after = append(after, pose)
					return true
				})
				Expect(after).To(Equal(before))
			})

			It("renders entities only after their first step", func() {
				ctx.Registry().ForEach(func(e sim.Entity) bool {
					Expect(e.Ready()).To(BeFalse())
					return true
				})
				Expect(surface.Presented()).To(BeZero())

				Expect(sim.NewLoop(ctx, surface).Step(nil, 0)).To(Succeed())
				ctx.Registry().ForEach(func(e sim.Entity) bool {
					Expect(e.Ready()).To(BeTrue())
					return true
				})
				Expect(surface.Last().Clear).To(Equal(engine.White))
				Expect(surface.Last().Rects).To(HaveLen(2))
			})

			It("skips entities whose pose cannot be read", func() {
				p.Scene().PoseErr = map[engine.BodyHandle]bool{1: true}
				Expect(sim.NewLoop(ctx, surface).Step(nil, 0)).To(Succeed())
				Expect(surface.Last().Rects).To(HaveLen(1))
			})
		})

		Context("with a box at the origin", func() {
			BeforeEach(func() {
				cfg.Spawn.Initial = 1
				cfg.Spawn.ExtentX = 0
				cfg.Spawn.ExtentZ = 0
				cfg.Gravity.Enabled = false
			})

			It("projects the pose onto the viewport", func() {
				Expect(sim.NewLoop(ctx, surface).Step(nil, 0)).To(Succeed())
				rects := surface.Last().Rects
				Expect(rects).To(HaveLen(1))
				Expect(rects[0].Rect).To(Equal(engine.Rect{X: 390, Y: 90, W: 20, H: 20}))
				e, ok := ctx.Registry().Get(1)
				Expect(ok).To(BeTrue())
				Expect(rects[0].Color).To(Equal(e.Color))
			})
		})

		It("stops on a spawn failure", func() {
			p.Fail["body"] = true
			err := sim.NewLoop(ctx, surface).Step([]sim.Action{sim.ActionSpawn}, 0)
			Expect(err).To(MatchError(sim.ErrSpawn))
			Expect(p.Simulates).To(BeEmpty())
		})

		It("refuses to step after shutdown", func() {
			loop := sim.NewLoop(ctx, surface)
			Expect(ctx.Shutdown()).To(Succeed())
			Expect(loop.Step(nil, 0)).To(MatchError(sim.ErrNotRunning))
		})

		It("notifies observers with the frame summary", func() {
			var frames []sim.Frame
			loop := sim.NewLoop(ctx, surface, sim.WithObserver(sim.ObserverFunc(func(f sim.Frame) {
				frames = append(frames, f)
			})))
			Expect(loop.Step([]sim.Action{sim.ActionSpawn}, 0.5)).To(Succeed())
			Expect(loop.Step(nil, 0.5)).To(Succeed())

			Expect(frames).To(HaveLen(2))
			Expect(frames[1].Index).To(Equal(uint64(2)))
			Expect(frames[1].Time).To(Equal(1.0))
			Expect(frames[1].Entities).To(Equal(1))
			Expect(frames[1].GravityOn).To(BeTrue())
			// the fake moves bodies by g*dt per step
			Expect(frames[1].MeanHeight).To(BeNumerically("~", cfg.Spawn.Height-2*9.81*0.5, 1e-9))
			Expect(loop.Frames()).To(Equal(uint64(2)))
		})
	})

	Describe("Run", func() {
		BeforeEach(func() {
			cfg.Loop.FixedDt = 1.0 / 60
		})

		It("returns cleanly on quit", func() {
			surface = render.NewHeadless(render.QuitAfter(5))
			loop := sim.NewLoop(ctx, surface)
			Expect(loop.Run(context.Background())).To(Succeed())
			Expect(loop.Frames()).To(Equal(uint64(5)))
			Expect(p.Simulates).To(HaveLen(5))
			Expect(p.Simulates[0]).To(Equal(1.0 / 60))
		})

		It("ignores the rest of a batch containing quit", func() {
			surface = render.NewHeadless(render.WithEvents(0, engine.KeyDown(engine.KeySpace), engine.Quit()))
			Expect(sim.NewLoop(ctx, surface).Run(context.Background())).To(Succeed())
			Expect(p.Simulates).To(BeEmpty())
			Expect(ctx.Registry().Len()).To(BeZero())
		})

		It("spawns from scripted key presses", func() {
			surface = render.NewHeadless(
				render.WithEvents(1, engine.KeyDown(engine.KeySpace)),
				render.WithEvents(2, engine.KeyDown(engine.KeySpace), engine.KeyDown(engine.KeyG)),
				render.QuitAfter(4),
			)
			Expect(sim.NewLoop(ctx, surface).Run(context.Background())).To(Succeed())
			Expect(ctx.Registry().Len()).To(Equal(2))
			Expect(ctx.GravityEnabled()).To(BeFalse())
		})

		It("returns the spawn error", func() {
			p.Fail["body"] = true
			surface = render.NewHeadless(render.WithEvents(0, engine.KeyDown(engine.KeySpace)))
			Expect(sim.NewLoop(ctx, surface).Run(context.Background())).To(MatchError(sim.ErrSpawn))
		})

		It("stops when the context is cancelled", func() {
			c, cancel := context.WithCancel(context.Background())
			cancel()
			Expect(sim.NewLoop(ctx, surface).Run(c)).To(MatchError(context.Canceled))
		})

		It("publishes a diagnostics sample per step", func() {
			Expect(ctx.Shutdown()).To(Succeed())

			var diag *fakeDiagnostics
			cfg.Diagnostics.Address = "ws://localhost:5425"
			deps := testDeps(p)
			deps.Dial = dialFake(p, &diag)
			ctx = mustInit(cfg, deps)

			surface = render.NewHeadless(render.QuitAfter(2))
			Expect(sim.NewLoop(ctx, surface).Run(context.Background())).To(Succeed())
			Expect(diag.samples).To(HaveLen(2))
			Expect(diag.samples[1].Frame).To(Equal(uint64(2)))
			Expect(diag.samples[1].GPU).To(BeTrue())
			Expect(diag.samples[1].Gravity).To(BeTrue())
		})
	})

	Describe("frame timing", func() {
		It("uses the measured delta", func() {
			surface = render.NewHeadless(render.QuitAfter(3))
			loop := sim.NewLoop(ctx, surface, sim.WithClock(stepClock(10*time.Millisecond)))
			Expect(loop.Run(context.Background())).To(Succeed())
			Expect(p.Simulates).To(HaveLen(3))
			for _, dt := range p.Simulates {
				Expect(dt).To(BeNumerically("~", 0.01, 1e-12))
			}
		})

		It("clamps long frames to max_dt", func() {
			surface = render.NewHeadless(render.QuitAfter(2))
			loop := sim.NewLoop(ctx, surface, sim.WithClock(stepClock(500*time.Millisecond)))
			Expect(loop.Run(context.Background())).To(Succeed())
			Expect(p.Simulates).To(Equal([]float64{cfg.Loop.MaxDt, cfg.Loop.MaxDt}))
		})

		Context("without a clamp", func() {
			BeforeEach(func() { cfg.Loop.MaxDt = 0 })

			It("passes long frames through", func() {
				surface = render.NewHeadless(render.QuitAfter(1))
				loop := sim.NewLoop(ctx, surface, sim.WithClock(stepClock(500*time.Millisecond)))
				Expect(loop.Run(context.Background())).To(Succeed())
				Expect(p.Simulates).To(Equal([]float64{0.5}))
			})
		})

		Context("with a frame interval", func() {
			BeforeEach(func() { cfg.Loop.FrameInterval = 16 * time.Millisecond })

			It("sleeps off the rest of each frame", func() {
				var slept []time.Duration
				surface = render.NewHeadless(render.QuitAfter(3))
				loop := sim.NewLoop(ctx, surface,
					sim.WithClock(stepClock(time.Millisecond)),
					sim.WithSleep(func(d time.Duration) { slept = append(slept, d) }))
				Expect(loop.Run(context.Background())).To(Succeed())
				Expect(slept).To(Equal([]time.Duration{
					15 * time.Millisecond, 15 * time.Millisecond, 15 * time.Millisecond,
				}))
			})
		})
	})
})

var _ = DescribeTable("Project",
	func(pos mgl64.Vec3, want engine.Rect) {
		vp := config.DefaultConfig().Viewport
		Expect(sim.Project(vp, pos)).To(Equal(want))
	},
	Entry("origin", mgl64.Vec3{}, engine.Rect{X: 390, Y: 290, W: 20, H: 20}),
	Entry("spawn height", mgl64.Vec3{0, 10, 0}, engine.Rect{X: 390, Y: 90, W: 20, H: 20}),
	Entry("right and below ground", mgl64.Vec3{5, -1, 3}, engine.Rect{X: 490, Y: 310, W: 20, H: 20}),
)

var _ = DescribeTable("ActionFor",
	func(ev engine.Event, want sim.Action, ok bool) {
		got, gotOK := sim.ActionFor(ev)
		Expect(gotOK).To(Equal(ok))
		Expect(got).To(Equal(want))
	},
	Entry("quit", engine.Quit(), sim.ActionQuit, true),
	Entry("space", engine.KeyDown(engine.KeySpace), sim.ActionSpawn, true),
	Entry("g", engine.KeyDown(engine.KeyG), sim.ActionToggleGravity, true),
	Entry("other key", engine.KeyDown(engine.KeyUnknown), sim.Action(0), false),
	Entry("resize", engine.Event{Kind: engine.EventResize}, sim.Action(0), false),
)
