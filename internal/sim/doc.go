// Package sim owns the simulation lifecycle, the frame loop and the registry
// of spawned boxes.
//
//   - [Initialize] creates every engine object in a fixed order and returns a
//     [Context]; [Context.Shutdown] releases them in exactly the reverse order.
//   - [Loop] polls the surface for input, steps the scene and draws the
//     registry once per frame.
//   - [Registry] maps entity ids to bodies and display colors.
//
// # Example
//
//	ctx, err := sim.Initialize(cfg, sim.Deps{Physics: chipmunk.New(), Log: log})
//	if err != nil {
//		return err
//	}
//	defer ctx.Shutdown()
//	return sim.NewLoop(ctx, surface).Run(context.Background())
//
// # Thread Safety
//
// A Context and everything reachable from it belong to the goroutine that
// created it. The engine may use its own workers inside a step; Step returns
// only once results are available.
package sim
