package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/hazel/internal/model"
)

// DefaultPageSize is the page size the lane scanners use.
const DefaultPageSize = 100

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write is rejected by the backend.
	ErrConflict = errors.New("record write conflict")
)

// PageQuery selects one page of a channel's history, newest first.
type PageQuery struct {
	ChannelID string
	// Since excludes records created at or before this moment. Zero means no bound.
	Since time.Time
	// Before is a record id cursor; only records older than it are returned.
	Before string
	Limit  int
}

// Store is the record accessor. Records have no partial update: callers read
// the full field set and write the full field set back.
type Store interface {
	CreateRecord(ctx context.Context, rec *model.Record) error
	GetRecord(ctx context.Context, id string) (*model.Record, error)
	// ReplaceFields overwrites every field of the record. There is no version
	// check; the last writer wins.
	ReplaceFields(ctx context.Context, id string, fields []model.Field) error
	DeleteRecord(ctx context.Context, id string) error
	ListPage(ctx context.Context, q PageQuery) ([]*model.Record, error)

	Close() error
}

// ScanSince returns every record of channelID created after since, newest
// first. Pages are requested until one comes back smaller than pageSize.
func ScanSince(ctx context.Context, s Store, channelID string, since time.Time, pageSize int) ([]*model.Record, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var (
		all    []*model.Record
		cursor string
	)
	for {
		page, err := s.ListPage(ctx, PageQuery{
			ChannelID: channelID,
			Since:     since,
			Before:    cursor,
			Limit:     pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", channelID, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		cursor = page[len(page)-1].ID
	}
}
