package ui

import (
	"fmt"
	"strings"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 71  // green
	colorFail   = 167 // red
)

var noColor bool

func render256(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render256(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render256(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render256(colorCmd, s) }

// RenderStatus renders a lane or check result: green when ok, red otherwise.
func RenderStatus(s string, ok bool) string {
	if ok {
		return render256(colorOK, s)
	}
	return render256(colorFail, s)
}

// RenderCircle prefixes name with a block in the circle's 24-bit embed
// colour. A zero colour renders the name alone.
func RenderCircle(name string, rgb int) string {
	if noColor || rgb <= 0 {
		return name
	}
	r, g, b := (rgb>>16)&0xff, (rgb>>8)&0xff, rgb&0xff
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm█\x1b[0m %s", r, g, b, name)
}

// Truncate shortens s to width runes, marking the cut with "...".
func Truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if width <= 3 || len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
