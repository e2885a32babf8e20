package engine

import "fmt"

type Color struct {
	R, G, B, A uint8
}

var (
	White = Color{R: 255, G: 255, B: 255, A: 255}
	Black = Color{A: 255}
)

// Rect is in screen pixels, origin top-left.
type Rect struct {
	X, Y, W, H float32
}

func (r Rect) Center() (float32, float32) {
	return r.X + r.W/2, r.Y + r.H/2
}

type EventKind uint8

const (
	EventQuit EventKind = iota + 1
	EventKeyDown
	EventResize
)

type Key int

const (
	KeyUnknown Key = iota
	KeySpace
	KeyG
)

func (k Key) String() string {
	switch k {
	case KeySpace:
		return "space"
	case KeyG:
		return "g"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Key  Key
}

func (e Event) String() string {
	switch e.Kind {
	case EventQuit:
		return "quit"
	case EventKeyDown:
		return "keydown:" + e.Key.String()
	case EventResize:
		return "resize"
	default:
		return fmt.Sprintf("event(%d)", e.Kind)
	}
}

func KeyDown(k Key) Event { return Event{Kind: EventKeyDown, Key: k} }

func Quit() Event { return Event{Kind: EventQuit} }

// Surface is an immediate-mode drawing target. A frame is Clear, any number
// of DrawRect, then Present.
type Surface interface {
	Clear(c Color)
	DrawRect(r Rect, c Color)
	Present()
	// PollEvent returns the next pending event, or false when the queue is
	// empty.
	PollEvent() (Event, bool)
	Close() error
}
