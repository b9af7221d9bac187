package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/store"
)

// FormatVersion is written into every export header.
const FormatVersion = "1"

// header is the first JSONL line written by ExportJSONL.
type header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Channels    []string  `json:"channels"`
	RecordCount int       `json:"record_count"`
}

// line wraps one exported record with a type discriminator.
type line struct {
	Type string        `json:"type"`
	Data *model.Record `json:"data"`
}

// ExportJSONL writes every record of the given channels to w: a header line
// followed by one record per line, sorted by id. Control blocks are exported
// verbatim inside the fields.
func ExportJSONL(ctx context.Context, s store.Store, channels []string, now time.Time, w io.Writer) error {
	var recs []*model.Record
	for _, ch := range channels {
		page, err := store.ScanSince(ctx, s, ch, time.Time{}, store.DefaultPageSize)
		if err != nil {
			return fmt.Errorf("export channel %s: %w", ch, err)
		}
		recs = append(recs, page...)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].ID < recs[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:     FormatVersion,
		Type:        "header",
		Timestamp:   now.UTC(),
		Channels:    channels,
		RecordCount: len(recs),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, rec := range recs {
		if err := enc.Encode(line{Type: "record", Data: rec}); err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
	}
	return nil
}
