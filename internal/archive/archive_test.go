package archive

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/store/memory"
)

func seedChannel(t *testing.T, s *memory.Store, channel string, n int) {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rec := &model.Record{
			ID:        fmt.Sprintf("%s-%03d", channel, i),
			ChannelID: channel,
			Title:     fmt.Sprintf("Entry %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Fields: []model.Field{
				{Name: "Tekst", Value: strings.Repeat("x", 10)},
				{Name: model.MetaFieldName, Value: `{"post_process":true}`},
			},
		}
		if err := s.CreateRecord(context.Background(), rec); err != nil {
			t.Fatalf("CreateRecord: %v", err)
		}
	}
}

func TestRender(t *testing.T) {
	rec := &model.Record{
		Title: "Vision",
		Fields: []model.Field{
			{Name: "Del 1", Value: "Fællesskab"},
			{Name: "META_DATA", Value: "{}"},
		},
	}
	want := "**Vision**\nDel 1: Fællesskab"
	if got := Render(rec); got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
	if got := Render(&model.Record{}); got != "" {
		t.Errorf("Render(empty) = %q, want empty", got)
	}
}

func TestReader_ReadsWholeChannelUnderBudget(t *testing.T) {
	s := memory.New()
	seedChannel(t, s, "vision", 5)
	seedChannel(t, s, "other", 2)

	r := NewReader(s, WithPageSize(2))
	entries, err := r.Entries(context.Background(), "vision")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	// First page is the two newest, emitted oldest first.
	if !strings.HasPrefix(entries[0], "**Entry 3**") || !strings.HasPrefix(entries[1], "**Entry 4**") {
		t.Errorf("unexpected order: %q, %q", entries[0], entries[1])
	}
	for _, e := range entries {
		if strings.Contains(e, model.MetaFieldName) {
			t.Errorf("control block leaked into archive: %q", e)
		}
	}
}

func TestReader_StopsAtBudget(t *testing.T) {
	s := memory.New()
	seedChannel(t, s, "handbook", 50)

	entry := Render(&model.Record{Title: "Entry 10", Fields: []model.Field{{Name: "Tekst", Value: strings.Repeat("x", 10)}}})
	r := NewReader(s, WithPageSize(5), WithBudget(len(entry)*7))

	entries, err := r.Entries(context.Background(), "handbook")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	// Budget covers a little under seven entries, so reading stops after the second page.
	if len(entries) != 10 {
		t.Fatalf("got %d entries, want 10", len(entries))
	}
}

func TestReader_EmptyChannel(t *testing.T) {
	r := NewReader(memory.New())
	for _, channel := range []string{"", "nothing"} {
		got, err := r.Read(context.Background(), channel)
		if err != nil {
			t.Fatalf("Read(%q): %v", channel, err)
		}
		if got != "" {
			t.Errorf("Read(%q) = %q, want empty", channel, got)
		}
	}
}

func TestReader_JoinsWithSeparator(t *testing.T) {
	s := memory.New()
	seedChannel(t, s, "vision", 2)

	got, err := NewReader(s).Read(context.Background(), "vision")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if strings.Count(got, Separator) != 1 {
		t.Errorf("expected one separator in %q", got)
	}
}
