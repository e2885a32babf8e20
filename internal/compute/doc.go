// Package compute opens the optional accelerator used by the physics scene.
//
// Only one accelerator is compiled in at a time:
//
//   - CUDA: opened through the CUDA runtime when built with the cuda tag
//   - stub: always invalid, so scenes run on the CPU
//
// # GPU Acceleration
//
// An invalid context is not an error. The caller releases it and carries on
// without a GPU:
//
//	ctx := compute.Acquire()
//	if !ctx.Valid() {
//		ctx.Release()
//	}
//
// Build with CUDA support:
//
//	go build -tags cuda ./cmd/boxsim
package compute
