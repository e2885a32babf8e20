package sim_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine/enginetest"
	"github.com/san-kum/boxsim/internal/render"
	"github.com/san-kum/boxsim/internal/sim"
)

var _ = Describe("Lifecycle", func() {
	var (
		p   *enginetest.Physics
		cfg *config.Config
	)

	BeforeEach(func() {
		p = enginetest.NewPhysics()
		cfg = testConfig()
	})

	It("creates everything in order and releases it in reverse", func() {
		ctx := mustInit(cfg, testDeps(p))
		Expect(p.Created()).To(Equal([]string{
			"foundation", "world", "gpu", "dispatcher", "scene", "material", "ground",
		}))
		Expect(ctx.UsingGPU()).To(BeTrue())

		Expect(ctx.Shutdown()).To(Succeed())
		Expect(ctx.State()).To(Equal(sim.Terminated))
		Expect(p.Released()).To(Equal(reversed(p.Created())))
	})

	It("tears entities down first, newest first", func() {
		cfg.Spawn.Initial = 3
		ctx := mustInit(cfg, testDeps(p))
		Expect(ctx.Registry().Len()).To(Equal(3))
		Expect(p.Created()[7:]).To(Equal([]string{"body#1", "body#2", "body#3"}))

		Expect(ctx.Shutdown()).To(Succeed())
		Expect(p.Released()).To(Equal(reversed(p.Created())))
		Expect(p.Scene().Live()).To(BeZero())
	})

	It("places the diagnostics connection between foundation and world", func() {
		var diag *fakeDiagnostics
		cfg.Diagnostics.Address = "ws://localhost:5425/diagnostics"
		deps := testDeps(p)
		deps.Dial = dialFake(p, &diag)

		ctx := mustInit(cfg, deps)
		Expect(p.Created()[:3]).To(Equal([]string{"foundation", "diagnostics", "world"}))

		Expect(ctx.Shutdown()).To(Succeed())
		Expect(p.Released()).To(Equal(reversed(p.Created())))
	})

	It("runs without diagnostics when the dial fails", func() {
		cfg.Diagnostics.Address = "ws://localhost:1"
		deps := testDeps(p)
		deps.Dial = func(string) (sim.Diagnostics, error) { return nil, errors.New("refused") }

		ctx := mustInit(cfg, deps)
		Expect(p.Created()).NotTo(ContainElement("diagnostics"))
		Expect(ctx.Shutdown()).To(Succeed())
	})

	It("dials a bare host:port on the default diagnostics path", func() {
		cfg.Diagnostics.Address = "localhost:5425"
		deps := testDeps(p)
		var dialed string
		deps.Dial = func(addr string) (sim.Diagnostics, error) {
			dialed = addr
			return nil, errors.New("refused")
		}

		ctx := mustInit(cfg, deps)
		Expect(dialed).To(Equal("ws://localhost:5425" + config.DefaultDiagnosticsPath))
		Expect(ctx.Shutdown()).To(Succeed())
	})

	Describe("GPU fallback", func() {
		It("releases an invalid context and continues on the CPU", func() {
			p.GPU = enginetest.GPUInvalid
			ctx := mustInit(cfg, testDeps(p))

			Expect(ctx.UsingGPU()).To(BeFalse())
			Expect(p.Log[:4]).To(Equal([]string{
				"create:foundation", "create:world", "create:gpu", "release:gpu",
			}))
			Expect(p.Scene().Desc.GPU).To(BeNil())

			Expect(sim.NewLoop(ctx, render.NewHeadless()).Step(nil, 1.0/60)).To(Succeed())
			Expect(ctx.Shutdown()).To(Succeed())
			Expect(p.Released()).To(HaveLen(len(p.Created())))
		})

		It("continues on the CPU when context creation fails", func() {
			p.GPU = enginetest.GPUError
			ctx := mustInit(cfg, testDeps(p))
			Expect(ctx.UsingGPU()).To(BeFalse())
			Expect(p.Created()).NotTo(ContainElement("gpu"))
			Expect(ctx.Shutdown()).To(Succeed())
		})

		It("does not ask for a context when disabled", func() {
			cfg.Engine.GPU = false
			ctx := mustInit(cfg, testDeps(p))
			Expect(ctx.UsingGPU()).To(BeFalse())
			Expect(p.Created()).NotTo(ContainElement("gpu"))
			Expect(ctx.Shutdown()).To(Succeed())
		})

		It("hands a valid context to the scene", func() {
			ctx := mustInit(cfg, testDeps(p))
			Expect(p.Scene().Desc.GPU).NotTo(BeNil())
			Expect(p.Scene().Desc.Dispatcher.Workers()).To(Equal(cfg.Engine.Workers))
			Expect(ctx.Shutdown()).To(Succeed())
		})
	})

	Describe("initialization failures", func() {
		It("is fatal when the foundation cannot be created", func() {
			p.Fail["foundation"] = true
			ctx, err := sim.Initialize(cfg, testDeps(p))
			Expect(ctx).To(BeNil())
			Expect(err).To(MatchError(sim.ErrFoundation))

			var initErr *sim.InitError
			Expect(errors.As(err, &initErr)).To(BeTrue())
			Expect(initErr.Stage).To(Equal("foundation"))
			Expect(err).To(MatchError(enginetest.ErrInjected))
			Expect(p.Log).To(BeEmpty())
		})

		It("is fatal when the world cannot be created", func() {
			p.Fail["world"] = true
			_, err := sim.Initialize(cfg, testDeps(p))
			Expect(err).To(MatchError(sim.ErrWorld))
			Expect(p.Released()).To(Equal([]string{"foundation"}))
		})

		DescribeTable("unwinds everything already created",
			func(kind string, sentinel error) {
				p.Fail[kind] = true
				_, err := sim.Initialize(cfg, testDeps(p))
				Expect(err).To(MatchError(sentinel))
				Expect(p.Released()).To(Equal(reversed(p.Created())))
			},
			Entry("dispatcher", "dispatcher", sim.ErrDispatcher),
			Entry("scene", "scene", sim.ErrScene),
			Entry("material", "material", sim.ErrMaterial),
			Entry("ground", "ground", sim.ErrGround),
		)

		It("unwinds when an initial entity cannot be spawned", func() {
			cfg.Spawn.Initial = 2
			p.Fail["body"] = true
			_, err := sim.Initialize(cfg, testDeps(p))
			Expect(err).To(MatchError(sim.ErrSpawn))
			Expect(p.Released()).To(Equal(reversed(p.Created())))
		})

		It("rejects an invalid config before touching the engine", func() {
			cfg.Engine.Workers = 0
			_, err := sim.Initialize(cfg, testDeps(p))
			Expect(err).To(HaveOccurred())
			Expect(p.Log).To(BeEmpty())
		})
	})

	It("refuses a second shutdown", func() {
		ctx := mustInit(cfg, testDeps(p))
		Expect(ctx.Shutdown()).To(Succeed())
		n := len(p.Log)

		Expect(ctx.Shutdown()).To(MatchError(sim.ErrShutdown))
		Expect(p.Log).To(HaveLen(n))
		Expect(ctx.State()).To(Equal(sim.Terminated))
	})

	It("does not mutate the caller's config when toggling gravity", func() {
		ctx := mustInit(cfg, testDeps(p))
		ctx.ToggleGravity()
		Expect(ctx.GravityEnabled()).To(BeFalse())
		Expect(cfg.Gravity.Enabled).To(BeTrue())
		Expect(ctx.Shutdown()).To(Succeed())
	})

	It("names its states", func() {
		Expect(sim.Uninitialized.String()).To(Equal("uninitialized"))
		Expect(sim.ShuttingDown.String()).To(Equal("shutting down"))
	})
})
