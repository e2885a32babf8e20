package sim_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine"
	"github.com/san-kum/boxsim/internal/engine/enginetest"
	"github.com/san-kum/boxsim/internal/sim"
)

var _ = Describe("Registry", func() {
	var (
		p     *enginetest.Physics
		scene engine.Scene
		mat   engine.Material
		reg   *sim.Registry
	)

	BeforeEach(func() {
		p = enginetest.NewPhysics()
		f, err := p.CreateFoundation(p)
		Expect(err).NotTo(HaveOccurred())
		w, err := f.CreateWorld(engine.DefaultTolerances())
		Expect(err).NotTo(HaveOccurred())
		scene, err = w.CreateScene(engine.SceneDesc{})
		Expect(err).NotTo(HaveOccurred())
		mat, err = w.CreateMaterial(engine.MaterialDesc{})
		Expect(err).NotTo(HaveOccurred())
		reg = sim.NewRegistry(config.DefaultConfig().Spawn, rand.New(rand.NewSource(1)))
	})

	spawn := func(n int) []sim.EntityID {
		GinkgoHelper()
		ids := make([]sim.EntityID, n)
		for i := range ids {
			id, err := reg.Spawn(scene, mat)
			Expect(err).NotTo(HaveOccurred())
			ids[i] = id
		}
		return ids
	}

	It("hands out increasing ids starting at one", func() {
		Expect(spawn(3)).To(Equal([]sim.EntityID{1, 2, 3}))
		Expect(reg.Len()).To(Equal(3))
	})

	It("visits, clears and is empty afterwards", func() {
		spawn(3)

		var seen []sim.EntityID
		reg.ForEach(func(e sim.Entity) bool {
			seen = append(seen, e.ID)
			return true
		})
		Expect(seen).To(Equal([]sim.EntityID{1, 2, 3}))

		Expect(reg.Clear(scene)).To(Succeed())
		Expect(p.Destroyed).To(HaveLen(3))
		Expect(reg.Len()).To(BeZero())

		visited := 0
		reg.ForEach(func(sim.Entity) bool {
			visited++
			return true
		})
		Expect(visited).To(BeZero())
	})

	It("stops early and restarts from the beginning", func() {
		spawn(3)

		var first []sim.EntityID
		reg.ForEach(func(e sim.Entity) bool {
			first = append(first, e.ID)
			return e.ID < 2
		})
		Expect(first).To(Equal([]sim.EntityID{1, 2}))

		var again []sim.EntityID
		for e := range reg.All() {
			again = append(again, e.ID)
		}
		Expect(again).To(Equal([]sim.EntityID{1, 2, 3}))
	})

	It("looks entities up by id", func() {
		ids := spawn(2)
		e, ok := reg.Get(ids[1])
		Expect(ok).To(BeTrue())
		Expect(e.Body).To(Equal(engine.BodyHandle(2)))
		Expect(e.Spawn.Y()).To(Equal(config.DefaultSpawnHeight))

		_, ok = reg.Get(99)
		Expect(ok).To(BeFalse())
	})

	It("registers nothing when the scene rejects the body", func() {
		p.Fail["body"] = true
		_, err := reg.Spawn(scene, mat)
		Expect(err).To(MatchError(enginetest.ErrInjected))
		Expect(reg.Len()).To(BeZero())
	})

	It("keeps entities whose body could not be destroyed", func() {
		spawn(2)
		Expect(scene.DestroyBody(1)).To(Succeed())

		err := reg.Clear(scene)
		Expect(err).To(HaveOccurred())
		Expect(reg.Len()).To(Equal(1))
		_, ok := reg.Get(1)
		Expect(ok).To(BeTrue())
	})

	It("is reproducible for a given seed", func() {
		other := sim.NewRegistry(config.DefaultConfig().Spawn, rand.New(rand.NewSource(1)))
		spawn(1)
		_, err := other.Spawn(scene, mat)
		Expect(err).NotTo(HaveOccurred())

		a, _ := reg.Get(1)
		b, _ := other.Get(1)
		Expect(a.Spawn).To(Equal(b.Spawn))
		Expect(a.Color).To(Equal(b.Color))
	})
})
