// Package indicator is the operator-facing status side channel of the
// control tower: a tagged status mapped to a colour through a lookup table,
// rendered on a terminal or recorded in tests.
package indicator

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

type Status int

const (
	Idle Status = iota
	PhaseStart
	Working
	Success
	Failure
	Degraded
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case PhaseStart:
		return "start"
	case Working:
		return "working"
	case Success:
		return "success"
	case Failure:
		return "error"
	case Degraded:
		return "degraded"
	}
	return "unknown"
}

// Signal is one indication. Code is the small error code shown on Failure,
// blinked Code times on the tower LED.
type Signal struct {
	Status Status
	Phase  model.Phase
	Code   int
}

type Color struct{ R, G, B uint8 }

func (c Color) Hex() string { return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B) }

var (
	Off     = Color{}
	White   = Color{255, 255, 255}
	Red     = Color{255, 0, 0}
	Green   = Color{0, 255, 0}
	Blue    = Color{0, 0, 255}
	Yellow  = Color{255, 255, 0}
	Magenta = Color{255, 0, 255}
	Cyan    = Color{0, 255, 255}
)

var statusColors = map[Status]Color{
	Idle:       Off,
	PhaseStart: White,
	Success:    Green,
	Failure:    Red,
	Degraded:   Cyan,
}

var workingColors = map[model.Phase]Color{
	model.PhaseHarvest:     Yellow,
	model.PhasePersist:     Magenta,
	model.PhaseRefill:      Blue,
	model.PhasePatrol:      Cyan,
	model.PhaseAwaitPatrol: Magenta,
}

// ColorOf resolves the colour of s.
func ColorOf(s Signal) Color {
	if s.Status == Working {
		return workingColors[s.Phase]
	}
	return statusColors[s.Status]
}

type Indicator interface {
	Show(s Signal)
}

// Nop discards every signal.
type Nop struct{}

func (Nop) Show(Signal) {}

// Console writes one coloured line per signal.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console { return &Console{w: w} }

func (c *Console) Show(s Signal) {
	dot := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorOf(s).Hex())).Render("●")
	label := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("phase %d %s", s.Phase.Number(), s.Phase))
	line := fmt.Sprintf("%s %s: %s", dot, label, s.Status)
	if s.Status == Failure {
		line += fmt.Sprintf(" (code %d)", s.Code)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

// Recorder keeps every signal.
type Recorder struct {
	mu      sync.Mutex
	signals []Signal
}

func (r *Recorder) Show(s Signal) {
	r.mu.Lock()
	r.signals = append(r.signals, s)
	r.mu.Unlock()
}

func (r *Recorder) Signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Signal(nil), r.signals...)
}

// Last returns the most recent signal with status st.
func (r *Recorder) Last(st Status) (Signal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.signals) - 1; i >= 0; i-- {
		if r.signals[i].Status == st {
			return r.signals[i], true
		}
	}
	return Signal{}, false
}
