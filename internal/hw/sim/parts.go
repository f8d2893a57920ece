package sim

import (
	"sync"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

// Stepper counts steps per direction.
type Stepper struct {
	mu    sync.Mutex
	steps map[hw.Direction]int
}

func NewStepper() *Stepper { return &Stepper{steps: make(map[hw.Direction]int)} }

func (s *Stepper) Step(d hw.Direction) {
	s.mu.Lock()
	s.steps[d]++
	s.mu.Unlock()
}

func (s *Stepper) Steps(d hw.Direction) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps[d]
}

// Valve records how long it was held open.
type Valve struct {
	mu     sync.Mutex
	clock  clock.Clock
	opened time.Time
	isOpen bool
	opens  []time.Duration
}

func NewValve(c clock.Clock) *Valve { return &Valve{clock: c} }

func (v *Valve) Open() {
	v.mu.Lock()
	v.opened = v.clock.Now()
	v.isOpen = true
	v.mu.Unlock()
}

func (v *Valve) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.isOpen {
		v.opens = append(v.opens, v.clock.Now().Sub(v.opened))
	}
	v.isOpen = false
}

// Openings returns the duration of every completed opening.
func (v *Valve) Openings() []time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]time.Duration(nil), v.opens...)
}

// Pump is a plain on/off actuator that remembers its switching history.
type Pump struct {
	mu      sync.Mutex
	running bool
	history []bool
}

func (p *Pump) On() {
	p.mu.Lock()
	p.running = true
	p.history = append(p.history, true)
	p.mu.Unlock()
}

func (p *Pump) Off() {
	p.mu.Lock()
	p.running = false
	p.history = append(p.history, false)
	p.mu.Unlock()
}

func (p *Pump) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pump) History() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.history...)
}

// Battery is a fixed voltage.
type Battery float64

func (b Battery) Volts() float64 { return float64(b) }
