package sim_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine/enginetest"
	"github.com/san-kum/boxsim/internal/sim"
	"github.com/san-kum/boxsim/internal/telemetry"
	"go.uber.org/zap"
)

func TestSim(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sim Suite")
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Spawn.Initial = 0
	cfg.Loop.FrameInterval = 0
	cfg.Seed = 7
	return cfg
}

func testDeps(p *enginetest.Physics) sim.Deps {
	return sim.Deps{Physics: p, Reporter: p, Log: zap.NewNop()}
}

func reversed(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

// fakeDiagnostics logs its lifetime into the physics log so ordering against
// engine objects can be checked.
type fakeDiagnostics struct {
	p       *enginetest.Physics
	samples []telemetry.Sample
}

func (d *fakeDiagnostics) Publish(s telemetry.Sample) {
	d.samples = append(d.samples, s)
}

func (d *fakeDiagnostics) Close() error {
	d.p.Log = append(d.p.Log, "release:diagnostics")
	return nil
}

func dialFake(p *enginetest.Physics, out **fakeDiagnostics) sim.DialFunc {
	return func(addr string) (sim.Diagnostics, error) {
		p.Log = append(p.Log, "create:diagnostics")
		d := &fakeDiagnostics{p: p}
		*out = d
		return d, nil
	}
}

func mustInit(cfg *config.Config, deps sim.Deps) *sim.Context {
	GinkgoHelper()
	ctx, err := sim.Initialize(cfg, deps)
	Expect(err).NotTo(HaveOccurred())
	Expect(ctx.State()).To(Equal(sim.Running))
	return ctx
}
