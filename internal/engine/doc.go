// Package engine declares the capabilities the simulation core consumes from
// its external collaborators.
//
// Two collaborators are modelled:
//
//   - [Physics]: a rigid-body engine reached through a chain of owned
//     objects ([Foundation] → [World] → [Scene]), each released explicitly.
//   - [Surface]: a 2D drawing surface with an event queue.
//
// Creation calls return an error instead of a nil handle. Callers decide
// whether a failure is fatal (foundation, world) or degraded (GPU context).
//
// # Ownership
//
// Every value returned by a Create* call must be released exactly once, after
// everything created from it:
//
//	foundation, _ := physics.CreateFoundation(reporter)
//	world, _ := foundation.CreateWorld(engine.DefaultTolerances())
//	scene, _ := world.CreateScene(desc)
//	defer foundation.Release()
//	defer world.Release()
//	defer scene.Release()
package engine
