package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	q := NewQueue()

	assert.True(t, q.Add(Entry{RecordID: "a", BacklogChannelID: "1"}))
	assert.False(t, q.Add(Entry{RecordID: "a", BacklogChannelID: "2"}))
	assert.True(t, q.Add(Entry{RecordID: "b"}))
	assert.True(t, q.Add(Entry{RecordID: "c"}))
	assert.Equal(t, 3, q.Len())

	snap := q.Snapshot()
	assert.Equal(t, "1", snap[0].BacklogChannelID, "duplicate add must not overwrite")
	snap[0].RecordID = "mutated"
	assert.True(t, q.Contains("a"))

	q.Remove("b")
	q.Remove("missing")
	assert.False(t, q.Contains("b"))

	var ids []string
	for _, e := range q.Snapshot() {
		ids = append(ids, e.RecordID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)

	assert.True(t, q.Add(Entry{RecordID: "b"}), "removed entries can be queued again")
}
