package model

// Phase is one stage of the control tower production cycle.
type Phase int

const (
	PhaseHarvest Phase = iota
	PhasePersist
	PhaseRefill
	PhasePatrol
	PhaseAwaitPatrol

	numPhases = 5
)

// Next returns the cyclic successor of p.
func (p Phase) Next() Phase {
	return Phase((int(p) + 1) % numPhases)
}

// Number is the 1-based phase number shown to operators.
func (p Phase) Number() int { return int(p) + 1 }

func (p Phase) String() string {
	switch p {
	case PhaseHarvest:
		return "harvest"
	case PhasePersist:
		return "persist"
	case PhaseRefill:
		return "refill"
	case PhasePatrol:
		return "patrol"
	case PhaseAwaitPatrol:
		return "await-patrol"
	}
	return "unknown"
}
