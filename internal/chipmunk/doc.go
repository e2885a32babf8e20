// Package chipmunk implements the engine capabilities on top of the
// Chipmunk2D port github.com/jakecoffman/cp.
//
// The engine is planar. Bodies move in the x/y plane with y up; the z
// coordinate given at creation is carried through unchanged so callers can
// keep using 3D poses. Orientation is a rotation about the z axis.
//
// Object lifetimes mirror the capability interfaces: a [Foundation] refuses to
// release while it still owns a [World], a World refuses while it owns scenes,
// materials, dispatchers or GPU contexts, and a [Scene] refuses while it owns
// bodies or actors. Violations go to the foundation's error reporter and come
// back as [ErrInUse].
//
// # Stepping
//
// [Scene.Simulate] runs the cp step on its own goroutine. [Scene.FetchResults]
// waits for it and snapshots every body pose across the scene's dispatcher
// workers. [Scene.Pose] reads that snapshot, so poses only change on fetch.
package chipmunk
