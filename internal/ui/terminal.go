package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// DefaultWidth is assumed when stdout is not a terminal.
const DefaultWidth = 100

// ShouldUseColor reports whether stdout should get ANSI colour. HAZEL_COLOR
// (always, never or auto) wins, then the no-color.org and CLICOLOR
// conventions, then TTY detection.
func ShouldUseColor() bool {
	return colorEnabled(os.Getenv, func() bool { return term.IsTerminal(int(os.Stdout.Fd())) })
}

func colorEnabled(getenv func(string) string, isTTY func() bool) bool {
	switch strings.ToLower(strings.TrimSpace(getenv("HAZEL_COLOR"))) {
	case "always":
		return true
	case "never":
		return false
	}
	switch {
	case getenv("NO_COLOR") != "":
		return false
	case strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1":
		return true
	case strings.TrimSpace(getenv("CLICOLOR")) == "0":
		return false
	}
	return isTTY()
}

// Width is the column count of the terminal on stdout, or DefaultWidth.
func Width() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return DefaultWidth
	}
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		return w
	}
	return DefaultWidth
}
