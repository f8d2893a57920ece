package sim

import (
	"math"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

// StaticProbe always reads the same value.
type StaticProbe byte

func (p StaticProbe) Moisture() byte { return byte(p) }

// gainPerMin: +60% per minuto di irrigazione (in [0..1]).
const gainPerMin = 0.6

// DryingProbe mantiene lo stato interno della moisture e lo aggiorna nel tempo:
// the soil dries by decayPerMin per minute and Water adds moisture back.
type DryingProbe struct {
	mu          sync.Mutex
	clock       clock.Clock
	last        time.Time
	moisture    float64 // [0..1]
	decayPerMin float64
}

// NewDryingProbe starts at seed (0..1).
func NewDryingProbe(c clock.Clock, seed, decayPerMin float64) *DryingProbe {
	return &DryingProbe{
		clock:       c,
		last:        c.Now(),
		moisture:    clamp01(seed),
		decayPerMin: math.Max(0, decayPerMin),
	}
}

// Moisture aggiorna lo stato e restituisce il valore su scala 0..255.
func (p *DryingProbe) Moisture() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.update()
	return byte(math.Round(p.moisture * 255))
}

// Water accounts for d of watering.
func (p *DryingProbe) Water(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.update()
	p.moisture = clamp01(p.moisture + gainPerMin*d.Minutes())
}

func (p *DryingProbe) update() {
	now := p.clock.Now()
	dtMin := now.Sub(p.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}
	p.moisture = clamp01(p.moisture - p.decayPerMin*dtMin)
	p.last = now
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
