package player

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_StartsAtZero(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
}

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next())
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	prev := c.Current()
	for i := 0; i < 100; i++ {
		next := c.Next()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestClock_ConcurrentUnique(t *testing.T) {
	c := NewClock()
	const goroutines = 50

	results := make(chan int64, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.Next()
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		assert.False(t, seen[v], "seq %d issued twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, goroutines)
}
