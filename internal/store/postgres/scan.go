package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/hazel/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a model.Record.
// The row must contain columns in the order defined by recordColumns.
func scanRecord(row scannable) (*model.Record, error) {
	var (
		r      model.Record
		fields []byte
	)
	if err := row.Scan(&r.ID, &r.ChannelID, &r.Title, &r.Color, &r.CreatedAt, &fields); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &r.Fields); err != nil {
			return nil, fmt.Errorf("decode fields for %s: %w", r.ID, err)
		}
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
