package lifecycle

import (
	"sync"
	"time"
)

// Entry is a decision waiting for its follow-up date.
type Entry struct {
	RecordID         string    `json:"record_id"`
	BacklogChannelID string    `json:"backlog_channel_id"`
	QueuedAt         time.Time `json:"queued_at"`
}

// Queue is the in-memory follow-up queue, deduplicated by record id.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	index   map[string]struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{index: make(map[string]struct{})}
}

// Add appends e unless its record is already queued. It reports whether e
// was added.
func (q *Queue) Add(e Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.index[e.RecordID]; ok {
		return false
	}
	q.index[e.RecordID] = struct{}{}
	q.entries = append(q.entries, e)
	return true
}

// Remove drops the entry of recordID, if any.
func (q *Queue) Remove(recordID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.index[recordID]; !ok {
		return
	}
	delete(q.index, recordID)
	for i := len(q.entries) - 1; i >= 0; i-- {
		if q.entries[i].RecordID == recordID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Contains reports whether recordID is queued.
func (q *Queue) Contains(recordID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[recordID]
	return ok
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of the entries in insertion order.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry(nil), q.entries...)
}
