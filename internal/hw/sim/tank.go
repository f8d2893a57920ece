// Package sim simulates the rig hardware against a clock, for tests and for
// the in-process rig simulator.
package sim

import (
	"sync"
	"time"

	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

// Tank is the car's water tank seen through its ultrasonic range finder. It
// is also the refill pump: while the pump is on the surface rises, so the
// measured distance shrinks at FillRate cm/s.
type Tank struct {
	mu    sync.Mutex
	clock clock.Clock

	distance float64
	fillRate float64
	floor    float64
	since    time.Time
	pumping  bool

	starts  int
	stops   int
	glitchN int
	reads   int
}

// NewTank starts with the water distance cm below the sensor.
func NewTank(c clock.Clock, distance, fillRate float64) *Tank {
	return &Tank{clock: c, distance: distance, fillRate: fillRate, since: c.Now()}
}

// WithGlitches makes every nth sample read 0, an invalid echo.
func (t *Tank) WithGlitches(n int) *Tank {
	t.glitchN = n
	return t
}

// WithFloor limits how close the surface can get to the sensor.
func (t *Tank) WithFloor(cm float64) *Tank {
	t.floor = cm
	return t
}

func (t *Tank) advance() {
	now := t.clock.Now()
	if t.pumping {
		t.distance -= t.fillRate * now.Sub(t.since).Seconds()
		if t.distance < t.floor {
			t.distance = t.floor
		}
	}
	t.since = now
}

func (t *Tank) Distance() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reads++
	if t.glitchN > 0 && t.reads%t.glitchN == 0 {
		return 0
	}
	t.advance()
	return t.distance
}

// Level is the true distance, without glitches.
func (t *Tank) Level() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance()
	return t.distance
}

// Set moves the surface, e.g. after a patrol emptied the tank.
func (t *Tank) Set(distance float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance()
	t.distance = distance
}

func (t *Tank) On() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance()
	if !t.pumping {
		t.starts++
	}
	t.pumping = true
}

func (t *Tank) Off() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance()
	if t.pumping {
		t.stops++
	}
	t.pumping = false
}

func (t *Tank) Pumping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pumping
}

// PumpCycles reports how often the pump was switched on and off.
func (t *Tank) PumpCycles() (starts, stops int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.starts, t.stops
}
