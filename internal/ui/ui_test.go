package ui

import (
	"strings"
	"testing"
)

func TestColorEnabled(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		tty  bool
		want bool
	}{
		{"TTY", nil, true, true},
		{"Pipe", nil, false, false},
		{"NoColor", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, true, false},
		{"Forced", map[string]string{"CLICOLOR_FORCE": "1"}, false, true},
		{"Disabled", map[string]string{"CLICOLOR": "0"}, true, false},
		{"HazelAlways", map[string]string{"HAZEL_COLOR": "always", "NO_COLOR": "1"}, false, true},
		{"HazelNever", map[string]string{"HAZEL_COLOR": "Never", "CLICOLOR_FORCE": "1"}, true, false},
		{"HazelAuto", map[string]string{"HAZEL_COLOR": "auto"}, false, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			getenv := func(k string) string { return tc.env[k] }
			if got := colorEnabled(getenv, func() bool { return tc.tty }); got != tc.want {
				t.Errorf("colorEnabled = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldUseColor_NoColor(t *testing.T) {
	t.Setenv("HAZEL_COLOR", "")
	t.Setenv("NO_COLOR", "1")
	if ShouldUseColor() {
		t.Error("ShouldUseColor() = true with NO_COLOR set")
	}
}

func TestRenderCircle(t *testing.T) {
	got := RenderCircle("economy", 0x2ecc71)
	if !strings.Contains(got, "38;2;46;204;113") || !strings.HasSuffix(got, " economy") {
		t.Errorf("RenderCircle = %q", got)
	}
	if got := RenderCircle("main", 0); got != "main" {
		t.Errorf("zero colour = %q, want plain name", got)
	}
}

func TestRenderStatus(t *testing.T) {
	if ok, fail := RenderStatus("x", true), RenderStatus("x", false); ok == fail {
		t.Errorf("ok and failed render the same: %q", ok)
	}
}

func TestTruncate(t *testing.T) {
	for _, tc := range []struct {
		in    string
		width int
		want  string
	}{
		{"kort", 10, "kort"},
		{"en meget lang beskrivelse", 10, "en mege..."},
		{"linje\nto", 20, "linje to"},
		{"æøåæøåæøå", 6, "æøå..."},
	} {
		if got := Truncate(tc.in, tc.width); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}
