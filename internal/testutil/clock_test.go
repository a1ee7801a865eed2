package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StartsAtZero(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())
}

func TestDeterministicClock_NextIncrements(t *testing.T) {
	clock := NewDeterministicClock()

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(3), clock.Next())
	assert.Equal(t, int64(3), clock.Current())
}

func TestDeterministicClock_ResetReplaysSequence(t *testing.T) {
	clock := NewDeterministicClock()

	clock.Next()
	clock.Next()
	first := clock.Issued()
	clock.Reset()
	assert.Empty(t, clock.Issued())
	assert.Equal(t, int64(0), clock.Current())

	clock.Next()
	clock.Next()
	assert.Equal(t, first, clock.Issued())
	assert.Equal(t, []int64{1, 2}, first)
}

func TestDeterministicClock_IssuedIsACopy(t *testing.T) {
	clock := NewDeterministicClock()
	clock.Next()

	got := clock.Issued()
	got[0] = 99
	assert.Equal(t, []int64{1}, clock.Issued())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()
	const workers = 20
	const calls = 50

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				v := clock.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*calls)
	assert.Equal(t, int64(workers*calls), clock.Current())
	assert.Len(t, clock.Issued(), workers*calls)
}
