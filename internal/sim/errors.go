package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrFoundation and ErrWorld are the fatal initialization failures.
	ErrFoundation = errors.New("sim: foundation creation failed")
	ErrWorld      = errors.New("sim: physics world creation failed")

	ErrDispatcher = errors.New("sim: dispatcher creation failed")
	ErrScene      = errors.New("sim: scene creation failed")
	ErrMaterial   = errors.New("sim: material creation failed")
	ErrGround     = errors.New("sim: ground plane creation failed")

	// ErrSpawn is returned when the engine cannot create a body for a new
	// entity. The loop stops on it.
	ErrSpawn = errors.New("sim: entity spawn failed")

	ErrShutdown = errors.New("sim: context already shut down")

	ErrNotRunning = errors.New("sim: context not running")
)

// InitError reports the stage at which Initialize gave up.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

func initError(stage string, sentinel, cause error) error {
	return &InitError{Stage: stage, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}
