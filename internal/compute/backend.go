package compute

// Context is a handle on an accelerator that the physics scene can offload
// its step to.
type Context interface {
	Name() string
	Valid() bool
	Release()
}

// Acquire opens the best accelerator compiled into the binary. The returned
// context may be invalid; callers fall back to the CPU in that case and must
// still Release it.
func Acquire() Context {
	return NewCUDAContext()
}

// Probe reports what Acquire would produce without keeping the context.
type Probe struct {
	Name   string
	Valid  bool
	Reason string
}

func Run() Probe {
	ctx := Acquire()
	defer ctx.Release()

	p := Probe{Name: ctx.Name(), Valid: ctx.Valid()}
	if !p.Valid {
		if r, ok := ctx.(interface{ Reason() string }); ok {
			p.Reason = r.Reason()
		}
	}
	return p
}
