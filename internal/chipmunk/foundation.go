package chipmunk

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/san-kum/boxsim/internal/engine"
)

// Physics is the entry point of the backend.
type Physics struct{}

var _ engine.Physics = Physics{}

func New() Physics { return Physics{} }

func (Physics) CreateFoundation(reporter engine.ErrorReporter) (engine.Foundation, error) {
	if reporter == nil {
		return nil, fmt.Errorf("%w: nil error reporter", ErrInvalidDesc)
	}
	f := &Foundation{reporter: reporter}
	f.node = node{kind: "foundation", owner: f}
	return f, nil
}

// node tracks the release order invariant shared by every backend object.
type node struct {
	kind     string
	owner    *Foundation
	parent   *node
	children int
	released bool
}

func (n *node) child(kind string) node {
	n.children++
	return node{kind: kind, owner: n.owner, parent: n}
}

func (n *node) release() error {
	if n.released {
		n.owner.report(engine.ErrorInvalidOperation, n.kind+" released twice")
		return fmt.Errorf("%s: %w", n.kind, ErrReleased)
	}
	if n.children > 0 {
		msg := fmt.Sprintf("%s released with %d live children", n.kind, n.children)
		n.owner.report(engine.ErrorInvalidOperation, msg)
		return fmt.Errorf("%s: %w (%d)", n.kind, ErrInUse, n.children)
	}
	n.released = true
	if n.parent != nil {
		n.parent.children--
	}
	return nil
}

type Foundation struct {
	node
	reporter engine.ErrorReporter
}

func (f *Foundation) CreateWorld(tol engine.Tolerances) (engine.World, error) {
	if f.released {
		return nil, fmt.Errorf("foundation: %w", ErrReleased)
	}
	if tol.Length <= 0 || tol.Speed <= 0 {
		f.report(engine.ErrorInvalidParameter, "tolerances must be positive")
		return nil, fmt.Errorf("%w: tolerances %+v", ErrInvalidDesc, tol)
	}
	w := &World{node: f.child("world"), tol: tol}
	return w, nil
}

func (f *Foundation) Release() error {
	return f.release()
}

func (f *Foundation) report(code engine.ErrorCode, msg string) {
	file, line := "", 0
	if _, path, l, ok := runtime.Caller(2); ok {
		file, line = filepath.Base(path), l
	}
	f.reporter.ReportError(code, msg, file, line)
}
