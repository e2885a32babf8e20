package sim

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine"
	"github.com/san-kum/boxsim/internal/logging"
	"github.com/san-kum/boxsim/internal/telemetry"
	"go.uber.org/zap"
)

// Diagnostics receives one sample per step. Implementations must not block.
type Diagnostics interface {
	Publish(telemetry.Sample)
	Close() error
}

type DialFunc func(addr string) (Diagnostics, error)

type Deps struct {
	Physics engine.Physics
	// Reporter defaults to logging the engine's errors through Log.
	Reporter engine.ErrorReporter
	// Dial is used when the config names a diagnostics address.
	Dial DialFunc
	Log  *zap.Logger
	// Rand defaults to a source seeded with the config seed.
	Rand *rand.Rand
}

// Context owns every engine object of one simulation.
type Context struct {
	cfg   config.Config
	root  *zap.Logger
	log   *zap.Logger
	state State
	stack releaseStack

	foundation  engine.Foundation
	diagnostics Diagnostics
	world       engine.World
	gpu         engine.GPUContext
	dispatcher  engine.Dispatcher
	scene       engine.Scene
	material    engine.Material
	ground      engine.Actor
	registry    *Registry
}

// Initialize builds the simulation. Only foundation and world failures are
// fatal by nature; any later creation failure is returned as well, after
// everything already created has been released.
func Initialize(cfg *config.Config, deps Deps) (*Context, error) {
	if deps.Physics == nil {
		return nil, errors.New("sim: no physics backend")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sim: invalid config: %w", err)
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	c := &Context{
		cfg:   *cfg,
		root:  log,
		log:   log.Named("lifecycle"),
		state: Initializing,
	}
	if err := c.build(deps); err != nil {
		if uerr := c.stack.unwind(c.log); uerr != nil {
			c.log.Error("release after failed initialization", zap.Error(uerr))
		}
		c.state = Terminated
		return nil, err
	}
	c.state = Running
	c.log.Info("simulation ready",
		zap.Bool("gpu", c.UsingGPU()),
		zap.Int("workers", c.cfg.Engine.Workers),
		zap.Int("entities", c.registry.Len()))
	return c, nil
}

func (c *Context) build(deps Deps) error {
	reporter := deps.Reporter
	if reporter == nil {
		reporter = logging.NewReporter(c.log)
	}
	foundation, err := deps.Physics.CreateFoundation(reporter)
	if err != nil {
		return initError("foundation", ErrFoundation, err)
	}
	c.foundation = foundation
	c.stack.push("foundation", foundation.Release)

	c.connectDiagnostics(deps.Dial)

	world, err := foundation.CreateWorld(engine.DefaultTolerances())
	if err != nil {
		return initError("world", ErrWorld, err)
	}
	c.world = world
	c.stack.push("world", world.Release)

	if c.cfg.Engine.GPU {
		c.acquireGPU()
	}

	dispatcher, err := world.CreateDispatcher(c.cfg.Engine.Workers)
	if err != nil {
		return initError("dispatcher", ErrDispatcher, err)
	}
	c.dispatcher = dispatcher
	c.stack.push("dispatcher", dispatcher.Release)

	scene, err := world.CreateScene(engine.SceneDesc{
		Gravity:    c.cfg.ActiveGravity(),
		Dispatcher: dispatcher,
		GPU:        c.gpu,
	})
	if err != nil {
		return initError("scene", ErrScene, err)
	}
	c.scene = scene
	c.stack.push("scene", scene.Release)

	material, err := world.CreateMaterial(engine.MaterialDesc{
		StaticFriction:  c.cfg.Material.StaticFriction,
		DynamicFriction: c.cfg.Material.DynamicFriction,
		Restitution:     c.cfg.Material.Restitution,
	})
	if err != nil {
		return initError("material", ErrMaterial, err)
	}
	c.material = material
	c.stack.push("material", material.Release)

	ground, err := scene.AddGroundPlane(material)
	if err != nil {
		return initError("ground", ErrGround, err)
	}
	c.ground = ground
	c.stack.push("ground", ground.Release)

	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(c.cfg.Seed))
	}
	c.registry = NewRegistry(c.cfg.Spawn, rng)
	c.stack.push("entities", func() error { return c.registry.Clear(c.scene) })

	for i := 0; i < c.cfg.Spawn.Initial; i++ {
		if _, err := c.registry.Spawn(scene, material); err != nil {
			return initError("entities", ErrSpawn, err)
		}
	}
	return nil
}

// connectDiagnostics is best effort: a failed dial is logged and the
// simulation runs without diagnostics.
func (c *Context) connectDiagnostics(dial DialFunc) {
	addr := config.DiagnosticsURL(c.cfg.Diagnostics.Address)
	if addr == "" || dial == nil {
		return
	}
	d, err := dial(addr)
	if err != nil {
		c.log.Warn("diagnostics unavailable", zap.String("addr", addr), zap.Error(err))
		return
	}
	c.diagnostics = d
	c.stack.push("diagnostics", d.Close)
}

func (c *Context) acquireGPU() {
	gpu, err := c.world.CreateGPUContext()
	switch {
	case err != nil:
		c.log.Warn("GPU unavailable, using CPU", zap.Error(err))
	case gpu == nil:
		c.log.Warn("GPU unavailable, using CPU", zap.String("reason", "no context"))
	case !gpu.Valid():
		c.log.Warn("GPU context invalid, using CPU", zap.String("device", gpu.Name()))
		if err := gpu.Release(); err != nil {
			c.log.Warn("release invalid GPU context", zap.Error(err))
		}
	default:
		c.gpu = gpu
		c.stack.push("gpu", gpu.Release)
		c.log.Info("GPU physics enabled", zap.String("device", gpu.Name()))
	}
}

// Shutdown releases everything Initialize created, newest first. Release
// failures are joined and returned; the context ends Terminated either way.
func (c *Context) Shutdown() error {
	if c.state != Running {
		return ErrShutdown
	}
	c.state = ShuttingDown
	err := c.stack.unwind(c.log)
	c.state = Terminated
	if err != nil {
		c.log.Error("shutdown incomplete", zap.Error(err))
		return err
	}
	c.log.Info("simulation shut down")
	return nil
}

func (c *Context) State() State { return c.state }

func (c *Context) UsingGPU() bool { return c.gpu != nil }

// Config is the live configuration, including runtime toggles.
func (c *Context) Config() config.Config { return c.cfg }

func (c *Context) Registry() *Registry { return c.registry }

func (c *Context) Scene() engine.Scene { return c.scene }

func (c *Context) GravityEnabled() bool { return c.cfg.Gravity.Enabled }

// ToggleGravity flips between the configured gravity and none. The scene
// picks it up on the next step.
func (c *Context) ToggleGravity() mgl64.Vec3 {
	c.cfg.Gravity.Enabled = !c.cfg.Gravity.Enabled
	g := c.cfg.ActiveGravity()
	c.scene.SetGravity(g)
	return g
}

// Spawn adds one entity to the scene.
func (c *Context) Spawn() (EntityID, error) {
	if c.state != Running {
		return 0, ErrNotRunning
	}
	id, err := c.registry.Spawn(c.scene, c.material)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	return id, nil
}

type release struct {
	name string
	fn   func() error
}

// releaseStack runs release functions in reverse push order.
type releaseStack []release

func (s *releaseStack) push(name string, fn func() error) {
	*s = append(*s, release{name: name, fn: fn})
}

func (s *releaseStack) unwind(log *zap.Logger) error {
	var errs []error
	for i := len(*s) - 1; i >= 0; i-- {
		r := (*s)[i]
		if err := r.fn(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", r.name, err))
			continue
		}
		log.Debug("released", zap.String("resource", r.name))
	}
	*s = nil
	return errors.Join(errs...)
}
