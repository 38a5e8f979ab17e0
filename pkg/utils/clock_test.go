package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	clock := NewRealClock()

	before := time.Now()
	actual := clock.Now()
	after := time.Now()

	assert.False(t, actual.Before(before))
	assert.False(t, actual.After(after))
}

func TestRealClock_Since(t *testing.T) {
	clock := NewRealClock()

	past := time.Now().Add(-1 * time.Second)
	assert.GreaterOrEqual(t, clock.Since(past), time.Second)
}

func TestMockClock_SleepAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Sleep(time.Millisecond)
	clock.Sleep(2 * time.Millisecond)

	assert.Equal(t, start.Add(3*time.Millisecond), clock.Now())
	assert.Equal(t, 3*time.Millisecond, clock.Since(start))

	n, total := clock.Sleeps()
	assert.Equal(t, 2, n)
	assert.Equal(t, 3*time.Millisecond, total)
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Advance(time.Hour)

	assert.Equal(t, start.Add(time.Hour), clock.Now())
	n, _ := clock.Sleeps()
	assert.Zero(t, n)
}

func TestMockClock_ConcurrentSleep(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				clock.Sleep(time.Microsecond)
			}
		}()
	}
	wg.Wait()

	n, total := clock.Sleeps()
	assert.Equal(t, 1000, n)
	assert.Equal(t, time.Millisecond, total)
}
