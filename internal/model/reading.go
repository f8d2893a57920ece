package model

import "time"

// Reading is one persisted moisture tuple. Harvester and Pot are 1-based.
type Reading struct {
	CycleID   string    `json:"cycle_id,omitempty"`
	Harvester int       `json:"harvester"`
	Pot       int       `json:"pot"`
	Moisture  byte      `json:"moisture"`
	Timestamp time.Time `json:"timestamp"`
}

// PatrolProgress are the grid counters owned by the car navigator during a
// patrol. Column is always Stop/4.
type PatrolProgress struct {
	Stop   int
	Column int
}

// Reset zeroes both counters.
func (p *PatrolProgress) Reset() {
	p.Stop = 0
	p.Column = 0
}
