package model

import "fmt"

// NodeAddress is the static mesh address of a node.
// ControlTower=0, Car=1, Harvester(n)=2+n.
type NodeAddress uint16

const (
	NodeControlTower NodeAddress = 0
	NodeCar          NodeAddress = 1

	firstHarvester NodeAddress = 2
)

// HarvesterAddress returns the address of the harvester with 0-based index n.
func HarvesterAddress(n int) NodeAddress {
	return firstHarvester + NodeAddress(n)
}

// IsHarvester reports whether a is a harvester address.
func (a NodeAddress) IsHarvester() bool { return a >= firstHarvester }

// HarvesterIndex returns the 0-based harvester index of a, or -1.
func (a NodeAddress) HarvesterIndex() int {
	if !a.IsHarvester() {
		return -1
	}
	return int(a - firstHarvester)
}

func (a NodeAddress) String() string {
	switch a {
	case NodeControlTower:
		return "ct"
	case NodeCar:
		return "car"
	default:
		return fmt.Sprintf("h%d", a.HarvesterIndex()+1)
	}
}
