package sim

import (
	"errors"
	"fmt"
	"iter"
	"math/rand"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine"
)

type EntityID uint64

// Entity is a spawned box. Body is owned by the scene; the registry only
// refers to it.
type Entity struct {
	ID    EntityID
	Body  engine.BodyHandle
	Color engine.Color
	Spawn mgl64.Vec3
	ready bool
}

// Ready reports whether the entity has been through a physics step.
func (e Entity) Ready() bool { return e.ready }

// Registry holds the live entities in spawn order.
type Registry struct {
	spawn    config.SpawnConfig
	rng      *rand.Rand
	next     EntityID
	entities []Entity
	index    map[EntityID]int
}

func NewRegistry(spawn config.SpawnConfig, rng *rand.Rand) *Registry {
	return &Registry{
		spawn: spawn,
		rng:   rng,
		index: make(map[EntityID]int),
	}
}

// Spawn creates a box at a random point of the spawn area with a random
// opaque color. Nothing is registered if the scene rejects the body.
func (r *Registry) Spawn(scene engine.Scene, material engine.Material) (EntityID, error) {
	pos := mgl64.Vec3{
		r.uniform(r.spawn.ExtentX),
		r.spawn.Height,
		r.uniform(r.spawn.ExtentZ),
	}
	he := r.spawn.HalfExtent
	h, err := scene.CreateBody(engine.BodyDesc{
		Geometry: engine.BoxGeometry{HalfExtents: mgl64.Vec3{he, he, he}},
		Pose:     engine.PoseAt(pos),
		Mass:     r.spawn.Mass,
		Material: material,
	})
	if err != nil {
		return 0, err
	}

	r.next++
	e := Entity{
		ID:   r.next,
		Body: h,
		Color: engine.Color{
			R: uint8(r.rng.Intn(256)),
			G: uint8(r.rng.Intn(256)),
			B: uint8(r.rng.Intn(256)),
			A: 255,
		},
		Spawn: pos,
	}
	r.index[e.ID] = len(r.entities)
	r.entities = append(r.entities, e)
	return e.ID, nil
}

// uniform samples [-extent, extent].
func (r *Registry) uniform(extent float64) float64 {
	return (r.rng.Float64()*2 - 1) * extent
}

func (r *Registry) Len() int { return len(r.entities) }

func (r *Registry) Get(id EntityID) (Entity, bool) {
	i, ok := r.index[id]
	if !ok {
		return Entity{}, false
	}
	return r.entities[i], true
}

// All yields entities in spawn order. Each call starts a fresh traversal.
func (r *Registry) All() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for _, e := range r.entities {
			if !yield(e) {
				return
			}
		}
	}
}

// ForEach calls fn in spawn order until it returns false.
func (r *Registry) ForEach(fn func(Entity) bool) {
	r.All()(fn)
}

func (r *Registry) markReady() {
	for i := range r.entities {
		r.entities[i].ready = true
	}
}

// Clear destroys every body, newest first, and empties the registry.
// Entities whose body could not be destroyed stay registered.
func (r *Registry) Clear(scene engine.Scene) error {
	var (
		errs []error
		kept []Entity
	)
	for _, e := range slices.Backward(r.entities) {
		if err := scene.DestroyBody(e.Body); err != nil {
			errs = append(errs, fmt.Errorf("entity %d: %w", e.ID, err))
			kept = append(kept, e)
		}
	}
	slices.Reverse(kept)
	r.entities = kept
	clear(r.index)
	for i, e := range kept {
		r.index[e.ID] = i
	}
	return errors.Join(errs...)
}
