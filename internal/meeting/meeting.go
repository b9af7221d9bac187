// Package meeting keeps the per-circle meeting sessions that gate outcome
// recording.
//
// A session is created when participants are picked for a circle and is
// replaced wholesale on every re-pick. Sessions expire lazily: a read past
// the expiry deletes the session and reports it as absent.
package meeting

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultDuration is how long a meeting session lives.
const DefaultDuration = 3 * time.Hour

// Session is a live meeting of one circle.
type Session struct {
	Circle       string    `json:"circle"`
	Participants []string  `json:"participants"`
	StartedAt    time.Time `json:"started_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Store holds at most one session per circle.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the live session of circle. An expired session is deleted.
func (s *Store) Get(circle string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[circle]
	if !ok {
		return nil, false
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, circle)
		return nil, false
	}
	return clone(sess), true
}

// Set replaces the session of circle. Participants are deduplicated and sorted.
func (s *Store) Set(circle string, participants []string, ttl time.Duration) *Session {
	now := s.now()
	sess := &Session{
		Circle:       circle,
		Participants: normalize(participants),
		StartedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}

	s.mu.Lock()
	s.sessions[circle] = sess
	s.mu.Unlock()

	return clone(sess)
}

func normalize(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func clone(s *Session) *Session {
	c := *s
	c.Participants = append([]string(nil), s.Participants...)
	return &c
}
