package testutil

import "sync"

// Clock is a logical clock for tests. It satisfies store.SeqSource: a store
// opened with a fresh Clock stamps its first query log record with seq 1,
// whatever the database already holds.
type Clock struct {
	mu     sync.Mutex
	issued []int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := int64(len(c.issued)) + 1
	c.issued = append(c.issued, seq)
	return seq
}

// Issued returns every sequence number handed out so far, in order.
func (c *Clock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.issued...)
}
