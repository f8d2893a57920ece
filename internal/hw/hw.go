// Package hw declares the actuator and sensor contracts the car and the
// harvesters drive. Real drivers live outside this module; internal/hw/sim
// provides simulations.
package hw

// LineSensors is the width of the line-follower array.
const LineSensors = 5

// LineReading is one sample of the array, left to right. true means the
// sensor sees the line.
type LineReading [LineSensors]bool

// AllDark reports whether every sensor sees the line: a grid stop.
func (r LineReading) AllDark() bool {
	for _, d := range r {
		if !d {
			return false
		}
	}
	return true
}

type LineSensor interface {
	Read() LineReading
}

// RawLineSensor returns uncalibrated reflectance values.
type RawLineSensor interface {
	ReadRaw() [LineSensors]uint16
}

type Direction int

const (
	Stop Direction = iota
	Forward
	Backward
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Stop:
		return "stop"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// Drive is the differential drive of the car.
type Drive interface {
	SetSpeed(speed int)
	Run(d Direction)
}

type Pump interface {
	On()
	Off()
}

// RangeFinder measures the distance from the tank lid to the water, in cm.
// A larger distance means less water.
type RangeFinder interface {
	Distance() float64
}

type Voltmeter interface {
	Volts() float64
}

// Stepper is the watering arm motor. Step advances one step in direction d
// (Left or Right).
type Stepper interface {
	Step(d Direction)
}

// Valve opens and closes the watering nozzle on the arm.
type Valve interface {
	Open()
	Close()
}

// MoistureProbe reads the soil moisture of one pot on the 0..255 scale.
type MoistureProbe interface {
	Moisture() byte
}
