package clock

import (
	"sync"
	"time"
)

// Sim is a simulated clock for single-goroutine control loops. Time stands
// still until somebody sleeps: Sleep and After advance the clock by the
// requested duration immediately, so a polling loop with a deadline runs to
// completion without wall-clock waiting.
//
// Sim is safe for concurrent use, but when several goroutines sleep on the
// same Sim each one advances the shared time. Use one Sim per node.
type Sim struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
}

// NewSim returns a Sim starting at start.
func NewSim(start time.Time) *Sim {
	return &Sim{now: start}
}

// Now returns the simulated time.
func (s *Sim) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Sleep advances the simulated time by d.
func (s *Sim) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	s.Advance(d)
}

// After advances the simulated time by d and returns an already fired
// channel.
func (s *Sim) After(d time.Duration) <-chan time.Time {
	s.Sleep(d)
	ch := make(chan time.Time, 1)
	ch <- s.Now()
	return ch
}

// Advance moves the clock forward by d.
func (s *Sim) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.slept += d
	s.mu.Unlock()
}

// Elapsed reports how much simulated time has passed since NewSim.
func (s *Sim) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slept
}
