package chipmunk

import "errors"

var (
	ErrReleased = errors.New("chipmunk: object already released")

	// ErrInUse means an object was released before the objects created from it.
	ErrInUse = errors.New("chipmunk: object still owns live children")

	ErrForeign = errors.New("chipmunk: object was not created by this backend")

	ErrInvalidDesc = errors.New("chipmunk: invalid descriptor")

	ErrSimulating = errors.New("chipmunk: scene is simulating")

	ErrNotSimulating = errors.New("chipmunk: no simulation to fetch")

	ErrUnknownBody = errors.New("chipmunk: unknown body handle")
)
