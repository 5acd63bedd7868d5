package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecalc/internal/clock"
)

var epoch = time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)

func TestAllowBurstThenRefill(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := New(60, 2, clk)

	assert.True(t, l.Allow("10.0.0.1").Allowed)
	assert.True(t, l.Allow("10.0.0.1").Allowed)

	d := l.Allow("10.0.0.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)

	// Denied calls do not push the refill further out.
	d = l.Allow("10.0.0.1")
	assert.Equal(t, time.Second, d.RetryAfter)

	clk.Advance(time.Second)
	assert.True(t, l.Allow("10.0.0.1").Allowed)
	assert.False(t, l.Allow("10.0.0.1").Allowed)
}

func TestAllowKeysAreIndependent(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := New(20, 1, clk)

	assert.True(t, l.Allow("a").Allowed)
	assert.False(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("b").Allowed)
	assert.Equal(t, 2, l.Len())
}

func TestRetryAfterFollowsRate(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := New(20, 1, clk)

	require.True(t, l.Allow("a").Allowed)
	d := l.Allow("a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 3*time.Second, d.RetryAfter)

	clk.Advance(2 * time.Second)
	d = l.Allow("a")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestSweep(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := New(60, 5, clk)

	l.Allow("old")
	clk.Advance(30 * time.Second)
	l.Allow("fresh")

	assert.Equal(t, 0, l.Sweep())

	clk.Advance(45 * time.Second)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())

	clk.Advance(time.Hour)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 0, l.Len())
}

func TestAllowConcurrent(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := New(60, 10, clk)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}
