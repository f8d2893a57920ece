// Package model holds the data every rig node shares: addresses, signals,
// the pot map, the watering plan and the tower phases.
package model

// DefaultMoistureThreshold on the 0..255 scale: pots reading below it get water.
const DefaultMoistureThreshold = 30

// Policy holds the soil-moisture threshold.
type Policy struct {
	MoistureThreshold byte `yaml:"moisture_threshold"`
}

// WateringPlan is the per-pot watering decision, same indexing as PotMap.
type WateringPlan []bool

// Plan derives the watering plan: plan[i] = m[i] < threshold.
func (p Policy) Plan(m PotMap) WateringPlan {
	plan := make(WateringPlan, len(m))
	for i, v := range m {
		plan[i] = v < p.MoistureThreshold
	}
	return plan
}

// Count returns how many pots are planned for watering.
func (w WateringPlan) Count() int {
	n := 0
	for _, b := range w {
		if b {
			n++
		}
	}
	return n
}

// At returns plan[i], false when i is out of range.
func (w WateringPlan) At(i int) bool {
	return i >= 0 && i < len(w) && w[i]
}

// Bytes encodes the plan for the wire: one byte per pot, 1 or 0.
func (w WateringPlan) Bytes() []byte {
	b := make([]byte, len(w))
	for i, v := range w {
		if v {
			b[i] = 1
		}
	}
	return b
}

// DecodePlan decodes a wire plan; any non-zero byte means true.
func DecodePlan(b []byte) WateringPlan {
	w := make(WateringPlan, len(b))
	for i, v := range b {
		w[i] = v != 0
	}
	return w
}
