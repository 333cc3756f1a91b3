package dates

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRolloverFiresAtMidnight(t *testing.T) {
	clk := NewManualClock(at(2024, 1, 15, 23, 59, 0, 0))
	var fired []time.Time
	cancel := ScheduleDailyRollover(clk, func() { fired = append(fired, clk.Now()) })
	defer cancel()

	clk.Advance(59 * time.Second)
	assert.Empty(t, fired)

	clk.Advance(time.Second)
	assert.Equal(t, []time.Time{at(2024, 1, 16, 0, 0, 0, 0)}, fired)

	// Re-armed for the next boundary only.
	clk.Advance(23 * time.Hour)
	assert.Len(t, fired, 1)
	clk.Advance(time.Hour)
	assert.Len(t, fired, 2)
	assert.Equal(t, at(2024, 1, 17, 0, 0, 0, 0), fired[1])
}

func TestRolloverOncePerBoundaryOnLargeJump(t *testing.T) {
	clk := NewManualClock(at(2024, 1, 15, 10, 0, 0, 0))
	var count int
	cancel := ScheduleDailyRollover(clk, func() { count++ })
	defer cancel()

	clk.Advance(72 * time.Hour)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, clk.Pending())
}

func TestRolloverCancelBeforeFire(t *testing.T) {
	clk := NewManualClock(at(2024, 1, 15, 22, 0, 0, 0))
	var count int
	cancel := ScheduleDailyRollover(clk, func() { count++ })

	cancel()
	cancel() // idempotent
	clk.Advance(48 * time.Hour)

	assert.Zero(t, count)
	assert.Zero(t, clk.Pending())
}

func TestRolloverCancelFromCallback(t *testing.T) {
	clk := NewManualClock(at(2024, 1, 15, 22, 0, 0, 0))
	var count int
	var cancel CancelFunc
	cancel = ScheduleDailyRollover(clk, func() {
		count++
		cancel()
	})

	clk.Advance(72 * time.Hour)
	assert.Equal(t, 1, count)
	assert.Zero(t, clk.Pending())
}

func TestRolloverSystemClockCancel(t *testing.T) {
	var count atomic.Int32
	cancel := ScheduleDailyRollover(NewSystemClock(time.UTC), func() { count.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cancel()
		}()
	}
	wg.Wait()
	assert.Zero(t, count.Load())
}

func TestManualClockTimerStop(t *testing.T) {
	clk := NewManualClock(at(2024, 1, 15, 0, 0, 0, 0))
	var ran bool
	tm := clk.AfterFunc(time.Minute, func() { ran = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	clk.Advance(time.Hour)
	assert.False(t, ran)
}
