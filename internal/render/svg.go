package render

import (
	"fmt"
	"strings"

	"github.com/san-kum/boxsim/internal/engine"
)

// FrameToSVG draws a recorded frame at its pixel size.
func FrameToSVG(f Frame, width, height int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, hexColor(f.Clear)))

	for _, r := range f.Rects {
		sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>
`, r.Rect.X, r.Rect.Y, r.Rect.W, r.Rect.H, hexColor(r.Color)))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// TrailsToSVG draws each trail as a polyline in screen pixels.
func TrailsToSVG(trails map[engine.Color][][2]float32, width, height int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#ffffff"/>
`, width, height, width, height))

	for col, pts := range trails {
		if len(pts) < 2 {
			continue
		}
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, hexColor(col)))
		for i, p := range pts {
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", p[0], p[1]))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", p[0], p[1]))
			}
		}
		sb.WriteString("\"/>\n")
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// Trails follows the centre of every rect across frames, keyed by color.
func Trails(frames []Frame) map[engine.Color][][2]float32 {
	out := make(map[engine.Color][][2]float32)
	for _, f := range frames {
		for _, r := range f.Rects {
			x, y := r.Rect.Center()
			out[r.Color] = append(out[r.Color], [2]float32{x, y})
		}
	}
	return out
}

func hexColor(c engine.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
