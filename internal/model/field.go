package model

import "fmt"

// Layout describes the pot grid: how many harvesters and how many pots each
// harvester reads. It fixes the length of PotMap and WateringPlan.
type Layout struct {
	Harvesters       int `yaml:"harvesters"`
	PotsPerHarvester int `yaml:"pots_per_harvester"`
}

// DefaultLayout is the rig as built: two harvesters with eight pots each.
var DefaultLayout = Layout{Harvesters: 2, PotsPerHarvester: 8}

// Pots is the total number of pots.
func (l Layout) Pots() int { return l.Harvesters * l.PotsPerHarvester }

// Index maps (harvester, pot) to the flat PotMap index.
func (l Layout) Index(harvester, pot int) int {
	return harvester*l.PotsPerHarvester + pot
}

// Locate is the inverse of Index.
func (l Layout) Locate(i int) (harvester, pot int) {
	return i / l.PotsPerHarvester, i % l.PotsPerHarvester
}

func (l Layout) Validate() error {
	if l.Harvesters <= 0 || l.PotsPerHarvester <= 0 {
		return fmt.Errorf("invalid layout %dx%d", l.Harvesters, l.PotsPerHarvester)
	}
	return nil
}

// PotMap holds one moisture byte (0..255) per pot, indexed by
// harvester*potsPerHarvester + pot.
type PotMap []byte

// NewPotMap returns a zeroed map for l.
func NewPotMap(l Layout) PotMap { return make(PotMap, l.Pots()) }

// Harvester returns the slice of m that belongs to harvester h.
func (m PotMap) Harvester(l Layout, h int) []byte {
	start := l.Index(h, 0)
	return m[start : start+l.PotsPerHarvester]
}

// Clone returns an independent copy.
func (m PotMap) Clone() PotMap {
	out := make(PotMap, len(m))
	copy(out, m)
	return out
}

// Readings flattens m into persistence tuples (1-based harvester/pot).
func (m PotMap) Readings(l Layout) []Reading {
	out := make([]Reading, 0, len(m))
	for i, v := range m {
		h, p := l.Locate(i)
		out = append(out, Reading{Harvester: h + 1, Pot: p + 1, Moisture: v})
	}
	return out
}

// AllZero reports whether every byte of b is zero. An all-zero harvester
// payload is the sensor-fault signature.
func AllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
