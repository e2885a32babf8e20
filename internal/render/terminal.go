package render

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/boxsim/internal/config"
	"github.com/san-kum/boxsim/internal/engine"
)

const eventBuffer = 64

var (
	frameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type frameMsg string

// Terminal draws into a braille canvas shown by a bubbletea program running
// on its own goroutine. Key presses travel back through a buffered channel;
// when it is full new events are dropped.
type Terminal struct {
	canvas *Canvas
	sx, sy float64

	events chan engine.Event
	prog   *tea.Program
	done   chan struct{}
	err    error
	once   sync.Once
	// quitSent is set once a quit has been handed to the caller.
	quitSent bool
}

// NewTerminal maps the viewport onto a cols × rows cell canvas and starts the
// program.
func NewTerminal(vp config.ViewportConfig, cols, rows int, opts ...tea.ProgramOption) *Terminal {
	t := &Terminal{
		canvas: NewCanvas(cols, rows),
		sx:     float64(cols*2) / float64(vp.Width),
		sy:     float64(rows*4) / float64(vp.Height),
		events: make(chan engine.Event, eventBuffer),
		done:   make(chan struct{}),
	}
	t.prog = tea.NewProgram(newTerminalModel(t.events), opts...)
	go func() {
		defer close(t.done)
		if _, err := t.prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			t.err = err
		}
	}()
	return t
}

func (t *Terminal) Clear(engine.Color) {
	t.canvas.Clear()
}

func (t *Terminal) DrawRect(r engine.Rect, c engine.Color) {
	x0 := int(math.Floor(float64(r.X) * t.sx))
	y0 := int(math.Floor(float64(r.Y) * t.sy))
	x1 := int(math.Ceil(float64(r.X+r.W) * t.sx))
	y1 := int(math.Ceil(float64(r.Y+r.H) * t.sy))
	t.canvas.FillRect(x0, y0, x1, y1, c)
}

func (t *Terminal) Present() {
	select {
	case <-t.done:
	default:
		t.prog.Send(frameMsg(t.canvas.Render()))
	}
}

// PollEvent drains buffered key events, then reports the program's exit as a
// quit. At most one quit is ever returned.
func (t *Terminal) PollEvent() (engine.Event, bool) {
	for {
		select {
		case ev := <-t.events:
			if ev.Kind == engine.EventQuit {
				if t.quitSent {
					continue
				}
				t.quitSent = true
			}
			return ev, true
		default:
		}
		break
	}
	if t.quitSent {
		return engine.Event{}, false
	}
	select {
	case <-t.done:
		t.quitSent = true
		return engine.Quit(), true
	default:
		return engine.Event{}, false
	}
}

func (t *Terminal) Close() error {
	t.once.Do(func() {
		t.prog.Quit()
		<-t.done
	})
	return t.err
}

type terminalModel struct {
	events chan<- engine.Event
	frame  string
	keys   int
}

func newTerminalModel(events chan<- engine.Event) terminalModel {
	return terminalModel{events: events}
}

func (m terminalModel) Init() tea.Cmd { return nil }

func (m terminalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.frame = string(msg)
	case tea.KeyMsg:
		ev, ok := keyEvent(msg)
		if !ok {
			return m, nil
		}
		m.keys++
		select {
		case m.events <- ev:
		default:
		}
		if ev.Kind == engine.EventQuit {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m terminalModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("boxsim"))
	b.WriteByte('\n')
	b.WriteString(frameStyle.Render(strings.TrimSuffix(m.frame, "\n")))
	b.WriteByte('\n')
	b.WriteString(helpStyle.Render(fmt.Sprintf("space spawn · g gravity · q quit · %d keys", m.keys)))
	return b.String()
}

func keyEvent(msg tea.KeyMsg) (engine.Event, bool) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return engine.Quit(), true
	case " ":
		return engine.KeyDown(engine.KeySpace), true
	case "g":
		return engine.KeyDown(engine.KeyG), true
	}
	return engine.Event{}, false
}
