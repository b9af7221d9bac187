// Package memory implements store.Store in process memory. It backs tests
// and the server when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/hazel/internal/idgen"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/store"
)

// Store keeps records in a map guarded by a mutex. Returned records are
// copies; mutating them does not affect stored state.
type Store struct {
	mu      sync.RWMutex
	records map[string]*model.Record
	seq     int64
	order   map[string]int64
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		records: make(map[string]*model.Record),
		order:   make(map[string]int64),
		now:     time.Now,
	}
}

// CreateRecord stores rec, assigning an id and creation time when unset.
func (s *Store) CreateRecord(_ context.Context, rec *model.Record) error {
	if rec.ID == "" {
		id, err := idgen.New(idgen.Record)
		if err != nil {
			return err
		}
		rec.ID = id
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return store.ErrConflict
	}
	s.seq++
	s.order[rec.ID] = s.seq
	s.records[rec.ID] = clone(rec)
	return nil
}

func (s *Store) GetRecord(_ context.Context, id string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(rec), nil
}

func (s *Store) ReplaceFields(_ context.Context, id string, fields []model.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.Fields = append([]model.Field(nil), fields...)
	return nil
}

func (s *Store) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.records, id)
	delete(s.order, id)
	return nil
}

// ListPage returns records newest first. Records created in the same instant
// are ordered by insertion.
func (s *Store) ListPage(_ context.Context, q store.PageQuery) ([]*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*model.Record
	for _, rec := range s.records {
		if rec.ChannelID != q.ChannelID {
			continue
		}
		if !q.Since.IsZero() && !rec.CreatedAt.After(q.Since) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		return s.newer(matched[i], matched[j])
	})

	start := 0
	if q.Before != "" {
		cur, ok := s.records[q.Before]
		if !ok {
			return nil, store.ErrNotFound
		}
		start = len(matched)
		for i, rec := range matched {
			if s.newer(cur, rec) {
				start = i
				break
			}
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultPageSize
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]*model.Record, 0, end-start)
	for _, rec := range matched[start:end] {
		out = append(out, clone(rec))
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

// newer reports whether a sorts before b in newest-first order.
func (s *Store) newer(a, b *model.Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return s.order[a.ID] > s.order[b.ID]
}

func clone(rec *model.Record) *model.Record {
	c := *rec
	c.Fields = append([]model.Field(nil), rec.Fields...)
	return &c
}
