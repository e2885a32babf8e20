package render

import "github.com/san-kum/boxsim/internal/engine"

type DrawnRect struct {
	Rect  engine.Rect
	Color engine.Color
}

// Frame is everything drawn between a Clear and the following Present.
type Frame struct {
	Clear engine.Color
	Rects []DrawnRect
}

// Headless is a Surface that draws nothing. Events are fed from a per-frame
// script; frame n's events become visible once n frames have been presented.
type Headless struct {
	script    map[int][]engine.Event
	quitAfter int
	record    bool

	queue     []engine.Event
	loaded    int
	presented int
	current   Frame
	last      Frame
	closed    bool

	Frames []Frame
}

type HeadlessOption func(*Headless)

// WithEvents queues evs to be polled after frame presents.
func WithEvents(frame int, evs ...engine.Event) HeadlessOption {
	return func(h *Headless) {
		h.script[frame] = append(h.script[frame], evs...)
	}
}

// QuitAfter emits a quit event once n frames have been presented.
func QuitAfter(n int) HeadlessOption {
	return func(h *Headless) { h.quitAfter = n }
}

// Record keeps every presented frame in Frames.
func Record() HeadlessOption {
	return func(h *Headless) { h.record = true }
}

func NewHeadless(opts ...HeadlessOption) *Headless {
	h := &Headless{script: make(map[int][]engine.Event), loaded: -1}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Push queues ev for the next poll.
func (h *Headless) Push(ev engine.Event) {
	h.queue = append(h.queue, ev)
}

func (h *Headless) Clear(c engine.Color) {
	h.current = Frame{Clear: c}
}

func (h *Headless) DrawRect(r engine.Rect, c engine.Color) {
	h.current.Rects = append(h.current.Rects, DrawnRect{Rect: r, Color: c})
}

func (h *Headless) Present() {
	h.last = h.current
	if h.record {
		h.Frames = append(h.Frames, h.current)
	}
	h.current = Frame{}
	h.presented++
}

func (h *Headless) PollEvent() (engine.Event, bool) {
	if h.loaded != h.presented {
		h.loaded = h.presented
		h.queue = append(h.queue, h.script[h.presented]...)
		if h.quitAfter > 0 && h.presented >= h.quitAfter {
			h.queue = append(h.queue, engine.Quit())
		}
	}
	if len(h.queue) == 0 {
		return engine.Event{}, false
	}
	ev := h.queue[0]
	h.queue = h.queue[1:]
	return ev, true
}

func (h *Headless) Close() error {
	h.closed = true
	return nil
}

// Presented is the number of completed frames.
func (h *Headless) Presented() int { return h.presented }

// Last is the most recently presented frame.
func (h *Headless) Last() Frame { return h.last }

func (h *Headless) Closed() bool { return h.closed }
