// Package timertest provides a manually driven clock and scheduler for
// countdown tests.
package timertest

import (
	"sync"
	"time"
)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type job struct {
	fn        func()
	cancelled bool
}

// Scheduler records scheduled jobs and runs them only when Tick is called.
type Scheduler struct {
	mu   sync.Mutex
	jobs []*job
	// Clock, when set, is advanced by the interval on every Tick.
	Clock    *Clock
	interval time.Duration
}

// Every implements timer.Scheduler.
func (s *Scheduler) Every(interval time.Duration, fn func()) func() {
	j := &job{fn: fn}
	s.mu.Lock()
	s.jobs = append(s.jobs, j)
	s.interval = interval
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		j.cancelled = true
		s.mu.Unlock()
	}
}

// Tick fires every active job n times.
func (s *Scheduler) Tick(n int) {
	for i := 0; i < n; i++ {
		s.mu.Lock()
		active := make([]*job, 0, len(s.jobs))
		for _, j := range s.jobs {
			if !j.cancelled {
				active = append(active, j)
			}
		}
		interval := s.interval
		s.mu.Unlock()

		if s.Clock != nil {
			s.Clock.Advance(interval)
		}
		for _, j := range active {
			j.fn()
		}
	}
}

// Active returns the number of jobs that have not been cancelled.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if !j.cancelled {
			n++
		}
	}
	return n
}
