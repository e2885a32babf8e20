package chipmunk

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/san-kum/boxsim/internal/engine"
)

const (
	solverIterations = 10
	// Poses are copied in chunks of at least this many bodies per worker.
	snapshotChunk = 64
	groundExtent  = 1e4
	groundDepth   = 0.5
)

var zAxis = mgl64.Vec3{0, 0, 1}

type body struct {
	handle engine.BodyHandle
	body   *cp.Body
	shape  *cp.Shape
	z      float64
}

type Scene struct {
	node
	space      *cp.Space
	gravity    mgl64.Vec3
	dispatcher *Dispatcher
	gpu        *GPUContext

	next   engine.BodyHandle
	bodies []*body
	poses  []engine.Pose
	slots  map[engine.BodyHandle]int

	// pending is closed when the step started by Simulate completes.
	pending chan struct{}
}

func newScene(n node, tol engine.Tolerances, gravity mgl64.Vec3, d *Dispatcher, gpu *GPUContext) *Scene {
	space := cp.NewSpace()
	space.Iterations = solverIterations
	space.SetCollisionSlop(0.01 * tol.Length)
	space.SetGravity(cp.Vector{X: gravity.X(), Y: gravity.Y()})

	d.children++
	if gpu != nil {
		gpu.children++
	}

	return &Scene{
		node:       n,
		space:      space,
		gravity:    gravity,
		dispatcher: d,
		gpu:        gpu,
		slots:      make(map[engine.BodyHandle]int),
	}
}

func (s *Scene) check() error {
	if s.released {
		return fmt.Errorf("scene: %w", ErrReleased)
	}
	if s.pending != nil {
		s.owner.report(engine.ErrorInvalidOperation, "scene mutated while simulating")
		return ErrSimulating
	}
	return nil
}

// AddGroundPlane adds a static slab whose top face is the y = 0 plane.
func (s *Scene) AddGroundPlane(material engine.Material) (engine.Actor, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	m, ok := material.(*Material)
	if !ok {
		return nil, fmt.Errorf("%w: material %T", ErrForeign, material)
	}

	a := cp.Vector{X: -groundExtent, Y: -groundDepth}
	b := cp.Vector{X: groundExtent, Y: -groundDepth}
	shape := s.space.AddShape(cp.NewSegment(s.space.StaticBody, a, b, groundDepth))
	shape.SetFriction(m.desc.StaticFriction)
	shape.SetElasticity(m.desc.Restitution)

	return &Actor{node: s.child("ground plane"), scene: s, shape: shape}, nil
}

func (s *Scene) CreateBody(desc engine.BodyDesc) (engine.BodyHandle, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	m, ok := desc.Material.(*Material)
	if !ok {
		return 0, fmt.Errorf("%w: material %T", ErrForeign, desc.Material)
	}
	he := desc.Geometry.HalfExtents
	if desc.Mass <= 0 || he.X() <= 0 || he.Y() <= 0 {
		s.owner.report(engine.ErrorInvalidParameter, "body needs positive mass and extents")
		return 0, fmt.Errorf("%w: mass %g extents %v", ErrInvalidDesc, desc.Mass, he)
	}

	w, h := 2*he.X(), 2*he.Y()
	cb := s.space.AddBody(cp.NewBody(desc.Mass, cp.MomentForBox(desc.Mass, w, h)))
	pos := desc.Pose.Position
	cb.SetPosition(cp.Vector{X: pos.X(), Y: pos.Y()})
	cb.SetAngle(angleOf(desc.Pose.Orientation))

	shape := s.space.AddShape(cp.NewBox(cb, w, h, 0))
	shape.SetFriction(m.desc.DynamicFriction)
	shape.SetElasticity(m.desc.Restitution)

	s.next++
	rec := &body{handle: s.next, body: cb, shape: shape, z: pos.Z()}
	s.slots[rec.handle] = len(s.bodies)
	s.bodies = append(s.bodies, rec)
	s.poses = append(s.poses, poseOf(rec))
	s.children++

	return rec.handle, nil
}

func (s *Scene) DestroyBody(h engine.BodyHandle) error {
	if err := s.check(); err != nil {
		return err
	}
	i, ok := s.slots[h]
	if !ok {
		s.owner.report(engine.ErrorInvalidParameter, "destroy of unknown "+h.String())
		return fmt.Errorf("%w: %s", ErrUnknownBody, h)
	}
	rec := s.bodies[i]
	s.space.RemoveShape(rec.shape)
	s.space.RemoveBody(rec.body)

	last := len(s.bodies) - 1
	if i != last {
		s.bodies[i] = s.bodies[last]
		s.poses[i] = s.poses[last]
		s.slots[s.bodies[i].handle] = i
	}
	s.bodies[last] = nil
	s.bodies = s.bodies[:last]
	s.poses = s.poses[:last]
	delete(s.slots, h)
	s.children--
	return nil
}

func (s *Scene) SetGravity(g mgl64.Vec3) {
	if err := s.check(); err != nil {
		return
	}
	s.gravity = g
	s.space.SetGravity(cp.Vector{X: g.X(), Y: g.Y()})
}

func (s *Scene) Gravity() mgl64.Vec3 { return s.gravity }

func (s *Scene) Simulate(dt float64) error {
	if err := s.check(); err != nil {
		return err
	}
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		s.owner.report(engine.ErrorInvalidParameter, "simulate with invalid dt")
		return fmt.Errorf("%w: dt %g", ErrInvalidDesc, dt)
	}

	done := make(chan struct{})
	s.pending = done
	space := s.space
	go func() {
		defer close(done)
		space.Step(dt)
	}()
	return nil
}

func (s *Scene) FetchResults(block bool) (bool, error) {
	if s.released {
		return false, fmt.Errorf("scene: %w", ErrReleased)
	}
	if s.pending == nil {
		return false, ErrNotSimulating
	}
	if block {
		<-s.pending
	} else {
		select {
		case <-s.pending:
		default:
			return false, nil
		}
	}
	s.pending = nil
	s.snapshot()
	return true, nil
}

func (s *Scene) snapshot() {
	bodies, poses := s.bodies, s.poses
	s.dispatcher.ParallelFor(len(bodies), snapshotChunk, func(start, end int) {
		for i := start; i < end; i++ {
			poses[i] = poseOf(bodies[i])
		}
	})
}

func (s *Scene) Pose(h engine.BodyHandle) (engine.Pose, error) {
	i, ok := s.slots[h]
	if !ok {
		return engine.Pose{}, fmt.Errorf("%w: %s", ErrUnknownBody, h)
	}
	return s.poses[i], nil
}

// Bodies is the number of live bodies.
func (s *Scene) Bodies() int { return len(s.bodies) }

func (s *Scene) Release() error {
	if s.pending != nil {
		s.owner.report(engine.ErrorDebugWarning, "scene released mid-step, waiting")
		<-s.pending
		s.pending = nil
	}
	if err := s.release(); err != nil {
		return err
	}
	s.dispatcher.children--
	if s.gpu != nil {
		s.gpu.children--
	}
	s.space = nil
	return nil
}

type Actor struct {
	node
	scene *Scene
	shape *cp.Shape
}

func (a *Actor) Release() error {
	if !a.released {
		if err := a.scene.check(); err != nil {
			return err
		}
	}
	if err := a.release(); err != nil {
		return err
	}
	a.scene.space.RemoveShape(a.shape)
	return nil
}

func poseOf(b *body) engine.Pose {
	p := b.body.Position()
	return engine.Pose{
		Position:    mgl64.Vec3{p.X, p.Y, b.z},
		Orientation: mgl64.QuatRotate(b.body.Angle(), zAxis),
	}
}

// angleOf extracts the rotation about z, ignoring any other axis.
func angleOf(q mgl64.Quat) float64 {
	if q == (mgl64.Quat{}) {
		return 0
	}
	return 2 * math.Atan2(q.V.Z(), q.W)
}
