package chipmunk

import (
	"fmt"

	"github.com/san-kum/boxsim/internal/compute"
	"github.com/san-kum/boxsim/internal/engine"
)

type World struct {
	node
	tol engine.Tolerances
	// acquire is swapped in tests.
	acquire func() compute.Context
}

func (w *World) CreateGPUContext() (engine.GPUContext, error) {
	if w.released {
		return nil, fmt.Errorf("world: %w", ErrReleased)
	}
	acquire := w.acquire
	if acquire == nil {
		acquire = compute.Acquire
	}
	ctx := acquire()
	if ctx == nil {
		return nil, fmt.Errorf("world: no accelerator")
	}
	return &GPUContext{node: w.child("gpu context"), ctx: ctx}, nil
}

func (w *World) CreateDispatcher(workers int) (engine.Dispatcher, error) {
	if w.released {
		return nil, fmt.Errorf("world: %w", ErrReleased)
	}
	if workers < 1 {
		w.owner.report(engine.ErrorInvalidParameter, "dispatcher needs at least one worker")
		return nil, fmt.Errorf("%w: %d workers", ErrInvalidDesc, workers)
	}
	return &Dispatcher{node: w.child("dispatcher"), workers: workers}, nil
}

func (w *World) CreateMaterial(desc engine.MaterialDesc) (engine.Material, error) {
	if w.released {
		return nil, fmt.Errorf("world: %w", ErrReleased)
	}
	if desc.StaticFriction < 0 || desc.DynamicFriction < 0 || desc.Restitution < 0 {
		w.owner.report(engine.ErrorInvalidParameter, "material coefficients must not be negative")
		return nil, fmt.Errorf("%w: material %+v", ErrInvalidDesc, desc)
	}
	return &Material{node: w.child("material"), desc: desc}, nil
}

func (w *World) CreateScene(desc engine.SceneDesc) (engine.Scene, error) {
	if w.released {
		return nil, fmt.Errorf("world: %w", ErrReleased)
	}
	d, ok := desc.Dispatcher.(*Dispatcher)
	if !ok || d == nil {
		w.owner.report(engine.ErrorInvalidParameter, "scene needs a dispatcher from this backend")
		return nil, fmt.Errorf("%w: dispatcher %T", ErrForeign, desc.Dispatcher)
	}
	if d.released {
		return nil, fmt.Errorf("dispatcher: %w", ErrReleased)
	}
	var gpu *GPUContext
	if desc.GPU != nil {
		g, ok := desc.GPU.(*GPUContext)
		if !ok {
			return nil, fmt.Errorf("%w: gpu context %T", ErrForeign, desc.GPU)
		}
		if !g.Valid() {
			w.owner.report(engine.ErrorDebugWarning, "invalid gpu context ignored by scene")
		} else {
			gpu = g
		}
	}
	return newScene(w.child("scene"), w.tol, desc.Gravity, d, gpu), nil
}

func (w *World) Release() error {
	return w.release()
}

// GPUContext wraps an accelerator handle. Chipmunk has no GPU solver, so a
// scene only holds the context for its lifetime.
type GPUContext struct {
	node
	ctx compute.Context
}

func (g *GPUContext) Name() string { return g.ctx.Name() }
func (g *GPUContext) Valid() bool  { return !g.released && g.ctx.Valid() }

func (g *GPUContext) Release() error {
	if err := g.release(); err != nil {
		return err
	}
	g.ctx.Release()
	return nil
}

type Material struct {
	node
	desc engine.MaterialDesc
}

func (m *Material) Desc() engine.MaterialDesc { return m.desc }

func (m *Material) Release() error {
	return m.release()
}
