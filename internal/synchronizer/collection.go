package synchronizer

import "github.com/prudhvinik1/livesync/internal/models"

// Collection is an ordered set of records unique by id. It is not safe for
// concurrent use; Handle guards it.
type Collection[R models.Record] struct {
	items []R
	index map[string]int
}

func NewCollection[R models.Record]() *Collection[R] {
	return &Collection[R]{index: make(map[string]int)}
}

func (c *Collection[R]) Len() int {
	return len(c.items)
}

func (c *Collection[R]) Get(id string) (R, bool) {
	i, ok := c.index[id]
	if !ok {
		var zero R
		return zero, false
	}
	return c.items[i], true
}

// Snapshot copies the current sequence.
func (c *Collection[R]) Snapshot() []R {
	out := make([]R, len(c.items))
	copy(out, c.items)
	return out
}

// Replace discards the contents and loads rows in order. A repeated id keeps
// its first position and its last value.
func (c *Collection[R]) Replace(rows []R) {
	c.items = make([]R, 0, len(rows))
	c.index = make(map[string]int, len(rows))
	for _, r := range rows {
		c.Upsert(r)
	}
}

// Upsert replaces the record with the same id in place or appends it.
// It reports whether the record was appended.
func (c *Collection[R]) Upsert(r R) bool {
	id := r.RecordID()
	if i, ok := c.index[id]; ok {
		c.items[i] = r
		return false
	}
	c.index[id] = len(c.items)
	c.items = append(c.items, r)
	return true
}

func (c *Collection[R]) Remove(id string) bool {
	i, ok := c.index[id]
	if !ok {
		return false
	}
	var zero R
	copy(c.items[i:], c.items[i+1:])
	c.items[len(c.items)-1] = zero
	c.items = c.items[:len(c.items)-1]
	delete(c.index, id)
	for j := i; j < len(c.items); j++ {
		c.index[c.items[j].RecordID()] = j
	}
	return true
}

// Apply mutates the collection according to ev. Created and Updated are
// both upserts so a redelivered create or an update for a missed create
// still converge. Owner filtering is the caller's job.
func (c *Collection[R]) Apply(ev models.ChangeEvent[R]) {
	switch ev.Kind {
	case models.ChangeCreated, models.ChangeUpdated:
		c.Upsert(ev.Record)
	case models.ChangeDeleted:
		c.Remove(ev.ID)
	}
}
