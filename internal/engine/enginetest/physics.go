// Package enginetest provides a recording implementation of the engine
// capabilities for tests.
package enginetest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/boxsim/internal/engine"
)

var ErrInjected = errors.New("enginetest: injected failure")

type GPUMode int

const (
	GPUValid GPUMode = iota
	GPUInvalid
	GPUError
)

// Physics records every create and release in Log as "create:<kind>" and
// "release:<kind>". Fail makes the named create return ErrInjected.
type Physics struct {
	Log  []string
	Fail map[string]bool
	GPU  GPUMode

	Simulates []float64
	Fetches   int
	Gravity   []mgl64.Vec3
	Bodies    []engine.BodyDesc
	Destroyed []engine.BodyHandle
	Reports   []string

	scene *Scene
}

var _ engine.Physics = (*Physics)(nil)

func NewPhysics() *Physics {
	return &Physics{Fail: make(map[string]bool)}
}

// Scene is the last scene created, or nil.
func (p *Physics) Scene() *Scene { return p.scene }

// Created lists the kinds in creation order.
func (p *Physics) Created() []string { return p.filter("create:") }

// Released lists the kinds in release order.
func (p *Physics) Released() []string { return p.filter("release:") }

func (p *Physics) filter(prefix string) []string {
	var out []string
	for _, entry := range p.Log {
		if kind, ok := strings.CutPrefix(entry, prefix); ok {
			out = append(out, kind)
		}
	}
	return out
}

func (p *Physics) create(kind string) error {
	if p.Fail[kind] {
		return fmt.Errorf("%s: %w", kind, ErrInjected)
	}
	p.Log = append(p.Log, "create:"+kind)
	return nil
}

func (p *Physics) release(kind string) error {
	p.Log = append(p.Log, "release:"+kind)
	return nil
}

func (p *Physics) CreateFoundation(reporter engine.ErrorReporter) (engine.Foundation, error) {
	if err := p.create("foundation"); err != nil {
		return nil, err
	}
	return &object{p: p, kind: "foundation"}, nil
}

func (p *Physics) ReportError(code engine.ErrorCode, message, file string, line int) {
	p.Reports = append(p.Reports, code.String()+": "+message)
}

type object struct {
	p    *Physics
	kind string
}

func (o *object) Release() error { return o.p.release(o.kind) }

func (o *object) CreateWorld(tol engine.Tolerances) (engine.World, error) {
	if err := o.p.create("world"); err != nil {
		return nil, err
	}
	return &object{p: o.p, kind: "world"}, nil
}

func (o *object) CreateGPUContext() (engine.GPUContext, error) {
	if o.p.GPU == GPUError {
		return nil, fmt.Errorf("gpu: %w", ErrInjected)
	}
	if err := o.p.create("gpu"); err != nil {
		return nil, err
	}
	return &gpu{object: object{p: o.p, kind: "gpu"}, valid: o.p.GPU == GPUValid}, nil
}

func (o *object) CreateDispatcher(workers int) (engine.Dispatcher, error) {
	if err := o.p.create("dispatcher"); err != nil {
		return nil, err
	}
	return &dispatcher{object: object{p: o.p, kind: "dispatcher"}, workers: workers}, nil
}

func (o *object) CreateScene(desc engine.SceneDesc) (engine.Scene, error) {
	if err := o.p.create("scene"); err != nil {
		return nil, err
	}
	s := &Scene{
		object:  object{p: o.p, kind: "scene"},
		Desc:    desc,
		gravity: desc.Gravity,
		poses:   make(map[engine.BodyHandle]engine.Pose),
	}
	o.p.scene = s
	return s, nil
}

func (o *object) CreateMaterial(desc engine.MaterialDesc) (engine.Material, error) {
	if err := o.p.create("material"); err != nil {
		return nil, err
	}
	return &material{object: object{p: o.p, kind: "material"}, desc: desc}, nil
}

type gpu struct {
	object
	valid bool
}

func (g *gpu) Name() string { return "fake gpu" }
func (g *gpu) Valid() bool  { return g.valid }

type dispatcher struct {
	object
	workers int
}

func (d *dispatcher) Workers() int { return d.workers }

type material struct {
	object
	desc engine.MaterialDesc
}

func (m *material) Desc() engine.MaterialDesc { return m.desc }

// Scene moves every body by gravity*dt on each Simulate, ignoring contacts.
type Scene struct {
	object
	Desc    engine.SceneDesc
	gravity mgl64.Vec3
	next    engine.BodyHandle
	order   []engine.BodyHandle
	poses   map[engine.BodyHandle]engine.Pose
	pending bool
	// PoseErr makes Pose fail for the given handles.
	PoseErr map[engine.BodyHandle]bool
}

func (s *Scene) AddGroundPlane(m engine.Material) (engine.Actor, error) {
	if err := s.p.create("ground"); err != nil {
		return nil, err
	}
	return &object{p: s.p, kind: "ground"}, nil
}

func (s *Scene) CreateBody(desc engine.BodyDesc) (engine.BodyHandle, error) {
	if s.p.Fail["body"] {
		return 0, fmt.Errorf("body: %w", ErrInjected)
	}
	s.next++
	h := s.next
	s.p.Log = append(s.p.Log, "create:"+h.String())
	s.p.Bodies = append(s.p.Bodies, desc)
	s.poses[h] = desc.Pose
	s.order = append(s.order, h)
	return h, nil
}

func (s *Scene) DestroyBody(h engine.BodyHandle) error {
	if _, ok := s.poses[h]; !ok {
		return fmt.Errorf("destroy %s: unknown", h)
	}
	delete(s.poses, h)
	for i, o := range s.order {
		if o == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.p.Destroyed = append(s.p.Destroyed, h)
	return s.p.release(h.String())
}

func (s *Scene) SetGravity(g mgl64.Vec3) {
	s.gravity = g
	s.p.Gravity = append(s.p.Gravity, g)
}

func (s *Scene) Gravity() mgl64.Vec3 { return s.gravity }

func (s *Scene) Simulate(dt float64) error {
	if s.pending {
		return errors.New("simulate: already pending")
	}
	s.pending = true
	s.p.Simulates = append(s.p.Simulates, dt)
	for _, h := range s.order {
		pose := s.poses[h]
		pose.Position = pose.Position.Add(s.gravity.Mul(dt))
		s.poses[h] = pose
	}
	return nil
}

func (s *Scene) FetchResults(block bool) (bool, error) {
	if !s.pending {
		return false, errors.New("fetch: nothing pending")
	}
	s.pending = false
	s.p.Fetches++
	return true, nil
}

func (s *Scene) Pose(h engine.BodyHandle) (engine.Pose, error) {
	if s.PoseErr[h] {
		return engine.Pose{}, fmt.Errorf("pose %s: %w", h, ErrInjected)
	}
	pose, ok := s.poses[h]
	if !ok {
		return engine.Pose{}, fmt.Errorf("pose %s: unknown", h)
	}
	return pose, nil
}

// Live is the number of bodies not yet destroyed.
func (s *Scene) Live() int { return len(s.order) }
