package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/hazel/internal/ui"
)

// helpStyle renders the three kinds of token picked out of usage text.
type helpStyle struct {
	header, command, muted func(string) string
}

var terminalHelpStyle = helpStyle{header: ui.RenderAccent, command: ui.RenderCommand, muted: ui.RenderMuted}

var (
	reFlagType = regexp.MustCompile(`(--?[\w-]+ )(string|strings|int|duration)\b`)
	reDefault  = regexp.MustCompile(`\(default [^)]*\)`)
)

func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		if noColor || !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		out := cmd.OutOrStdout()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String(), terminalHelpStyle))
	}
}

// colorizeHelp styles cobra usage text line by line: section headers,
// the command column of command lists, flag value types and defaults.
func colorizeHelp(text string, st helpStyle) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		switch {
		case line != "" && line[0] != ' ' && strings.HasSuffix(strings.TrimSpace(line), ":"):
			lines[i] = st.header(strings.TrimSpace(line))
		case strings.HasPrefix(line, "  ") && !strings.HasPrefix(strings.TrimLeft(line, " "), "-"):
			rest := line[2:]
			if name, desc, ok := strings.Cut(rest, "  "); ok && name != "" && !strings.Contains(name, " ") {
				lines[i] = "  " + st.command(name) + "  " + desc
			}
		default:
			line = reFlagType.ReplaceAllStringFunc(line, func(m string) string {
				parts := reFlagType.FindStringSubmatch(m)
				return parts[1] + st.muted(parts[2])
			})
			lines[i] = reDefault.ReplaceAllStringFunc(line, st.muted)
		}
	}
	return strings.Join(lines, "\n")
}
