package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/boxsim/internal/engine"
)

const blank = 0x2800

// Braille dots, 2 wide by 4 tall per cell:
//
//	1 4
//	2 5
//	3 6
//	7 8
var dotMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille grid with Width*2 by Height*4 addressable dots. Each
// cell takes the color of the last shape drawn into it.
type Canvas struct {
	Width, Height int
	grid          [][]rune
	colors        [][]engine.Color
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		grid:   make([][]rune, h),
		colors: make([][]engine.Color, h),
	}
	for i := range c.grid {
		c.grid[i] = make([]rune, w)
		c.colors[i] = make([]engine.Color, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Clear() {
	for i := range c.grid {
		for j := range c.grid[i] {
			c.grid[i][j] = blank
			c.colors[i][j] = engine.Color{}
		}
	}
}

// Set lights the dot at (x, y) in dot coordinates.
func (c *Canvas) Set(x, y int, col engine.Color) {
	if x < 0 || y < 0 {
		return
	}
	cx, cy := x/2, y/4
	if cx >= c.Width || cy >= c.Height {
		return
	}
	c.grid[cy][cx] |= dotMap[y%4][x%2]
	c.colors[cy][cx] = col
}

// FillRect fills the dots covered by [x0, x1) × [y0, y1), clipped to the
// canvas.
func (c *Canvas) FillRect(x0, y0, x1, y1 int, col engine.Color) {
	x0, x1 = max(x0, 0), min(x1, c.Width*2)
	y0, y1 = max(y0, 0), min(y1, c.Height*4)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c.Set(x, y, col)
		}
	}
}

// Lit reports whether the cell at column cx, row cy has any dot set.
func (c *Canvas) Lit(cx, cy int) bool {
	return c.grid[cy][cx] != blank
}

// String is the grid without color.
func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// Render is the grid with each lit cell styled in its color.
func (c *Canvas) Render() string {
	var b strings.Builder
	for i, row := range c.grid {
		for j, r := range row {
			if r == blank {
				b.WriteRune(r)
				continue
			}
			b.WriteString(styleFor(c.colors[i][j]).Render(string(r)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func styleFor(col engine.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor(col)))
}
