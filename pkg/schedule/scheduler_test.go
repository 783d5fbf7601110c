package schedule

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerFiresFirstTick(t *testing.T) {
	s := New(rand.NewSource(1))
	now := time.Unix(1000, 0)
	require.True(t, s.Tick(now))
	require.Equal(t, now, s.LastSend())
	require.False(t, s.Tick(now))
}

func TestSchedulerInterval(t *testing.T) {
	s := New(rand.NewSource(42))
	start := time.Unix(1000, 0)
	require.True(t, s.Tick(start))
	interval := s.Interval()

	require.False(t, s.Tick(start.Add(interval-time.Millisecond)))
	// fires only when strictly greater than the interval.
	require.False(t, s.Tick(start.Add(interval)))
	require.Equal(t, interval, s.Interval())
	next := start.Add(interval + time.Millisecond)
	require.True(t, s.Tick(next))
	require.Equal(t, next, s.LastSend())
}

func TestSchedulerJitterBounds(t *testing.T) {
	s := New(rand.NewSource(7))
	now := time.Unix(0, 0).Add(time.Hour)
	seen := make(map[time.Duration]bool)
	for i := 0; i < 2000; i++ {
		require.True(t, s.Tick(now))
		interval := s.Interval()
		require.True(t, interval >= 500*time.Millisecond, "interval %v too short", interval)
		require.True(t, interval < 1500*time.Millisecond, "interval %v too long", interval)
		require.Equal(t, time.Duration(0), interval%time.Millisecond)
		seen[interval] = true
		now = now.Add(interval + time.Millisecond)
	}
	require.True(t, len(seen) > 100, "interval not re-rolled")
}
