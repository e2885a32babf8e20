package render

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine"
)

var keyMap = map[int32]engine.Event{
	rl.KeySpace: engine.KeyDown(engine.KeySpace),
	rl.KeyG:     engine.KeyDown(engine.KeyG),
	rl.KeyQ:     engine.Quit(),
}

// Window is a raylib window sized to the viewport. Closing it, or pressing
// escape or q, produces a single quit event.
type Window struct {
	quit    bool
	resized bool
	hud     bool
	closed  bool
}

// OpenWindow must be called from the goroutine that will drive the window.
func OpenWindow(vp config.ViewportConfig, title string, hud bool) *Window {
	rl.SetTraceLogLevel(rl.LogWarning)
	rl.InitWindow(int32(vp.Width), int32(vp.Height), title)
	return &Window{hud: hud}
}

func (w *Window) Clear(c engine.Color) {
	rl.BeginDrawing()
	rl.ClearBackground(toRL(c))
}

func (w *Window) DrawRect(r engine.Rect, c engine.Color) {
	rl.DrawRectangleRec(rl.Rectangle{X: r.X, Y: r.Y, Width: r.W, Height: r.H}, toRL(c))
}

func (w *Window) Present() {
	if w.hud {
		rl.DrawFPS(10, 10)
	}
	rl.EndDrawing()
	w.resized = false
}

func (w *Window) PollEvent() (engine.Event, bool) {
	if !w.quit && rl.WindowShouldClose() {
		w.quit = true
		return engine.Quit(), true
	}
	if !w.resized && rl.IsWindowResized() {
		w.resized = true
		return engine.Event{Kind: engine.EventResize}, true
	}
	for {
		code := rl.GetKeyPressed()
		if code == 0 {
			return engine.Event{}, false
		}
		ev, ok := keyMap[code]
		if !ok {
			continue
		}
		if ev.Kind == engine.EventQuit {
			if w.quit {
				continue
			}
			w.quit = true
		}
		return ev, true
	}
}

func (w *Window) Close() error {
	if !w.closed {
		w.closed = true
		rl.CloseWindow()
	}
	return nil
}

func toRL(c engine.Color) rl.Color {
	return rl.NewColor(c.R, c.G, c.B, c.A)
}
