package car

import "github.com/LeonardoBeccarini/aquarius/internal/hw"

// TankGauge averages a window of range-finder samples. Samples of 0 (no
// echo) or above MaxPlausible are discarded instead of averaged.
type TankGauge struct {
	Sensor       hw.RangeFinder
	Samples      int
	MaxPlausible float64
}

// Level returns the average of the valid samples and how many there were.
// With no valid sample the average is 0.
func (g *TankGauge) Level() (avg float64, valid int) {
	var sum float64
	for i := 0; i < g.Samples; i++ {
		d := g.Sensor.Distance()
		if d == 0 || d > g.MaxPlausible {
			continue
		}
		sum += d
		valid++
	}
	if valid == 0 {
		return 0, 0
	}
	return sum / float64(valid), valid
}

// NeedsRefill is the refill precondition: the averaged surface distance must
// be at least margin above minEmpty. Readings with no valid sample never
// qualify.
func NeedsRefill(avg float64, valid int, minEmpty, margin float64) bool {
	if valid == 0 {
		return false
	}
	return avg-minEmpty >= margin
}

// Overfilled reports whether a valid level has crossed minEmpty.
func Overfilled(avg float64, valid int, minEmpty float64) bool {
	return valid > 0 && avg-minEmpty < 0
}
