// Package archive reads a channel's history into a bounded block of text
// that is handed to the text transform as reference material.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/store"
)

// DefaultBudget is the character budget of one archive.
const DefaultBudget = 64000

// Separator joins archive entries.
const Separator = "\n\n---\n\n"

// Reader pages backward through a channel until its budget is spent.
type Reader struct {
	store    store.Store
	budget   int
	pageSize int
}

// Option configures a Reader.
type Option func(*Reader)

// WithBudget sets the character budget.
func WithBudget(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.budget = n
		}
	}
}

// WithPageSize sets how many records are requested per page.
func WithPageSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// NewReader creates a Reader over s.
func NewReader(s store.Store, opts ...Option) *Reader {
	r := &Reader{store: s, budget: DefaultBudget, pageSize: store.DefaultPageSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Entries returns the rendered records of channelID. Within a page entries are
// oldest first; pages are read newest first. Reading stops once the budget is
// reached, so the last page may push the total past it.
func (r *Reader) Entries(ctx context.Context, channelID string) ([]string, error) {
	if channelID == "" {
		return nil, nil
	}
	var (
		entries []string
		total   int
		cursor  string
	)
	for total < r.budget {
		page, err := r.store.ListPage(ctx, store.PageQuery{
			ChannelID: channelID,
			Before:    cursor,
			Limit:     r.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("read archive %s: %w", channelID, err)
		}
		if len(page) == 0 {
			break
		}
		for i := len(page) - 1; i >= 0; i-- {
			text := Render(page[i])
			if text == "" {
				continue
			}
			if len(entries) > 0 {
				total++
			}
			total += len(text)
			entries = append(entries, text)
		}
		if len(page) < r.pageSize {
			break
		}
		cursor = page[len(page)-1].ID
	}
	return entries, nil
}

// Read returns the archive of channelID as one string.
func (r *Reader) Read(ctx context.Context, channelID string) (string, error) {
	entries, err := r.Entries(ctx, channelID)
	if err != nil {
		return "", err
	}
	return strings.Join(entries, Separator), nil
}

// Render formats a record as a bold title followed by one "name: value" line
// per field. The control block is never included.
func Render(rec *model.Record) string {
	var parts []string
	if rec.Title != "" {
		parts = append(parts, "**"+rec.Title+"**")
	}
	for _, f := range rec.Fields {
		if strings.EqualFold(f.Name, model.MetaFieldName) {
			continue
		}
		parts = append(parts, f.Name+": "+f.Value)
	}
	return strings.Join(parts, "\n")
}
