// Package schedule decides when a unit transmits.
package schedule

import (
	"math/rand"
	"sync"
	"time"
)

// Jitter bounds of the interval between two sends.
const (
	MinInterval = 500 * time.Millisecond
	JitterRange = 1000 * time.Millisecond
)

// Scheduler fires once the current interval has elapsed since the last
// send, then rolls a new interval in [MinInterval, MinInterval+JitterRange).
// The interval is re-rolled after every send regardless of delivery,
// keeping the two units from transmitting in lockstep.
type Scheduler struct {
	lastSend time.Time
	interval time.Duration

	rnd  *rand.Rand
	lock sync.Mutex
}

// New creates a Scheduler using src for jitter. A nil src seeds from
// the current time. The first Tick always fires.
func New(src rand.Source) *Scheduler {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	s := &Scheduler{rnd: rand.New(src)}
	s.interval = s.roll()
	return s
}

// Tick reports whether a packet should be sent at now.
func (s *Scheduler) Tick(now time.Time) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.lastSend.IsZero() && now.Sub(s.lastSend) <= s.interval {
		return false
	}
	s.lastSend, s.interval = now, s.roll()
	return true
}

// Interval returns the interval required before the next send.
func (s *Scheduler) Interval() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.interval
}

// LastSend returns the time of the last firing Tick.
func (s *Scheduler) LastSend() time.Time {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastSend
}

func (s *Scheduler) roll() time.Duration {
	return MinInterval + time.Duration(s.rnd.Int63n(int64(JitterRange/time.Millisecond)))*time.Millisecond
}
