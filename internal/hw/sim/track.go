package sim

import (
	"sync"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
)

// DriveCommand is one recorded Run call.
type DriveCommand struct {
	Direction hw.Direction
	Speed     int
}

// Track is a scripted line under a car. It is both the line sensor and the
// drive: each Read taken while the car is moving consumes the next scripted
// reading, so the car only progresses along the track while it drives.
// After the script the last reading repeats.
type Track struct {
	mu       sync.Mutex
	readings []hw.LineReading
	pos      int

	speed    int
	dir      hw.Direction
	commands []DriveCommand
}

func NewTrack(readings ...hw.LineReading) *Track {
	return &Track{readings: readings}
}

var (
	Center   = hw.LineReading{false, false, true, false, false}
	AllDark  = hw.LineReading{true, true, true, true, true}
	Off      = hw.LineReading{}
	NearLeft = hw.LineReading{false, true, true, false, false}
	FarLeft  = hw.LineReading{true, false, false, false, false}
	FarRight = hw.LineReading{false, false, false, false, true}
)

// GridTrack lays out stops grid stops, each preceded by between readings of
// straight line and lasting dark readings.
func GridTrack(stops, between, dark int) *Track {
	var r []hw.LineReading
	for s := 0; s < stops; s++ {
		for i := 0; i < between; i++ {
			r = append(r, Center)
		}
		for i := 0; i < dark; i++ {
			r = append(r, AllDark)
		}
	}
	r = append(r, Center)
	return NewTrack(r...)
}

func (t *Track) Read() hw.LineReading {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.readings) == 0 {
		return Off
	}
	r := t.readings[t.pos]
	if t.dir != hw.Stop && t.pos < len(t.readings)-1 {
		t.pos++
	}
	return r
}

func (t *Track) SetSpeed(speed int) {
	t.mu.Lock()
	t.speed = speed
	t.mu.Unlock()
}

func (t *Track) Run(d hw.Direction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dir = d
	t.commands = append(t.commands, DriveCommand{Direction: d, Speed: t.speed})
}

// Rewind restarts the script, for a new patrol.
func (t *Track) Rewind() {
	t.mu.Lock()
	t.pos = 0
	t.mu.Unlock()
}

func (t *Track) Commands() []DriveCommand {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]DriveCommand(nil), t.commands...)
}

// Direction is the current drive direction.
func (t *Track) Direction() hw.Direction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir
}

// Done reports whether the whole script has been consumed.
func (t *Track) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos >= len(t.readings)-1
}

// Reflectance reports a line sensor as raw reflectance values, Dark where
// the line is seen and Light elsewhere.
type Reflectance struct {
	Line        hw.LineSensor
	Dark, Light uint16
}

func (r Reflectance) ReadRaw() [hw.LineSensors]uint16 {
	var out [hw.LineSensors]uint16
	for i, d := range r.Line.Read() {
		out[i] = r.Light
		if d {
			out[i] = r.Dark
		}
	}
	return out
}
