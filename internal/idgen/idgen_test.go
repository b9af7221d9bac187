package idgen

import (
	"regexp"
	"testing"
)

var shape = regexp.MustCompile(`^(rec|bl|dec|post)-[0-9a-zA-Z]{12}$`)

func TestNew(t *testing.T) {
	for _, k := range []Kind{Record, Backlog, Decision, Post} {
		t.Run(string(k), func(t *testing.T) {
			id, err := New(k)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !shape.MatchString(id) {
				t.Errorf("id %q has the wrong shape", id)
			}
			if got, ok := KindOf(id); !ok || got != k {
				t.Errorf("KindOf(%q) = %q, %v", id, got, ok)
			}
		})
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 2000)
	for range 2000 {
		id, err := New(Decision)
		if err != nil {
			t.Fatal(err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestKindOf_Foreign(t *testing.T) {
	for _, id := range []string{"", "dec-1", "msg-abcdefghijkl", "dec-abcdefghijklm"} {
		if k, ok := KindOf(id); ok {
			t.Errorf("KindOf(%q) = %q, want unknown", id, k)
		}
	}
}
