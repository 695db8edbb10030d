package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func TestDeterministicClock_StartsAtStart(t *testing.T) {
	clock := NewDeterministicClock(epoch)
	assert.Equal(t, epoch, clock.Now())
}

func TestDeterministicClock_NextTSIncrements(t *testing.T) {
	clock := NewDeterministicClock(epoch)

	first := clock.NextTS()
	second := clock.NextTS()

	assert.Equal(t, epoch.Add(time.Second).UnixMilli(), first)
	assert.Equal(t, int64(1000), second-first)
	assert.Equal(t, epoch.Add(2*time.Second), clock.Now())
}

func TestDeterministicClock_AdvanceAndReset(t *testing.T) {
	clock := NewDeterministicClock(epoch)

	clock.Advance(24 * time.Hour)
	assert.Equal(t, epoch.Add(24*time.Hour), clock.Now())

	clock.Reset()
	assert.Equal(t, epoch, clock.Now())
}

func TestDeterministicClock_ConcurrentNextTS(t *testing.T) {
	clock := NewDeterministicClock(epoch)

	const n = 100
	var wg sync.WaitGroup
	seen := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- clock.NextTS()
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for ts := range seen {
		unique[ts] = true
	}
	assert.Len(t, unique, n)
	assert.Equal(t, epoch.Add(n*time.Second), clock.Now())
}
