package testutil

import (
	"slices"
	"sync"
)

// DeterministicClock satisfies player.Sequencer for tests. Unlike
// player.Clock it can be rewound, and it keeps every seq it has issued so a
// test can compare the stamps two runs produced.
type DeterministicClock struct {
	mu     sync.Mutex
	seq    int64
	issued []int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.issued = append(c.issued, c.seq)
	return c.seq
}

func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Issued returns the seqs handed out since the last Reset, in order.
func (c *DeterministicClock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.issued)
}

// Reset rewinds to zero and forgets the issued seqs.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
	c.issued = nil
}
