package car

import (
	"context"
	"log"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/metrics"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

// Rule is the steering decision for one line reading, in priority order.
type Rule int

const (
	RuleGridStop Rule = iota + 1
	RuleHardLeft
	RuleHardRight
	RuleLeft
	RuleRight
	RuleStraight
	// RuleHold: no rule matched. The previous drive command stays in effect.
	RuleHold
)

func (r Rule) String() string {
	switch r {
	case RuleGridStop:
		return "grid-stop"
	case RuleHardLeft:
		return "hard-left"
	case RuleHardRight:
		return "hard-right"
	case RuleLeft:
		return "left"
	case RuleRight:
		return "right"
	case RuleStraight:
		return "straight"
	case RuleHold:
		return "hold"
	}
	return "unknown"
}

// Steer applies the steering rules, first match wins. s is left to right.
func Steer(s hw.LineReading) Rule {
	switch {
	case s.AllDark():
		return RuleGridStop
	case s[0] && !s[2] && !s[4]:
		return RuleHardLeft
	case !s[0] && !s[2] && s[4]:
		return RuleHardRight
	case s[1] && !s[3]:
		return RuleLeft
	case !s[1] && s[3]:
		return RuleRight
	case s[2]:
		return RuleStraight
	}
	return RuleHold
}

// PotAction waters pot Index on side Side of the car.
type PotAction struct {
	Index int
	Side  hw.Direction
}

// StopAction is what happens at one grid stop.
type StopAction struct {
	Column int
	Water  []PotAction
	// End: the last column was reached, the patrol is over.
	End bool
}

// StopsPerColumn is how many grid stops make a column.
const StopsPerColumn = 4

// StopActions maps a stop counter to its watering. Column 0 waters the left
// pot at stop, column 1 waters stop on the left and stop+4 on the right,
// column 2 waters stop+4 on the right, column 3 ends the patrol. Each pot is
// gated by its own plan bit.
func StopActions(stop int, plan model.WateringPlan) StopAction {
	col := stop / StopsPerColumn
	a := StopAction{Column: col}
	left := PotAction{Index: stop, Side: hw.Left}
	right := PotAction{Index: stop + StopsPerColumn, Side: hw.Right}
	switch col {
	case 0:
		if plan.At(left.Index) {
			a.Water = append(a.Water, left)
		}
	case 1:
		if plan.At(left.Index) {
			a.Water = append(a.Water, left)
		}
		if plan.At(right.Index) {
			a.Water = append(a.Water, right)
		}
	case 2:
		if plan.At(right.Index) {
			a.Water = append(a.Water, right)
		}
	default:
		a.End = true
	}
	return a
}

// Waterer runs the watering sequence for one pot.
type Waterer interface {
	Water(side hw.Direction)
}

type NavigatorConfig struct {
	MinSpeed int
	MaxSpeed int

	RollOut            time.Duration
	PauseAfterWatering time.Duration
	// SampleInterval is the pause before every line reading.
	SampleInterval time.Duration
}

// PatrolReport summarises one patrol.
type PatrolReport struct {
	Stops     int
	Watered   []int
	Unmatched int
}

// Navigator follows the line, stops at every grid intersection and waters
// the pots the plan selects.
type Navigator struct {
	line  hw.LineSensor
	drive hw.Drive
	arm   Waterer
	clock clock.Clock
	cfg   NavigatorConfig

	progress model.PatrolProgress

	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewNavigator(line hw.LineSensor, drive hw.Drive, arm Waterer, c clock.Clock, cfg NavigatorConfig, m *metrics.Metrics, logger *log.Logger) *Navigator {
	if logger == nil {
		logger = log.Default()
	}
	return &Navigator{line: line, drive: drive, arm: arm, clock: c, cfg: cfg, metrics: m, logger: logger}
}

// Progress returns the grid counters.
func (n *Navigator) Progress() model.PatrolProgress { return n.progress }

func (n *Navigator) read() hw.LineReading {
	if n.cfg.SampleInterval > 0 {
		n.clock.Sleep(n.cfg.SampleInterval)
	}
	return n.line.Read()
}

func (n *Navigator) move(speed int, d hw.Direction) {
	n.drive.SetSpeed(speed)
	n.drive.Run(d)
}

// Patrol runs until the last column is reached or ctx is done. It has no
// timeout of its own: a line that never produces a grid stop keeps the car
// patrolling until ctx is cancelled.
func (n *Navigator) Patrol(ctx context.Context, plan model.WateringPlan) (PatrolReport, error) {
	var rep PatrolReport
	n.progress.Reset()

	n.move(n.cfg.MinSpeed, hw.Forward)
	clock.SleepUntil(n.clock, n.clock.Now().Add(n.cfg.RollOut))

	for {
		if err := ctx.Err(); err != nil {
			n.drive.Run(hw.Stop)
			return rep, err
		}
		s := n.read()
		switch Steer(s) {
		case RuleGridStop:
			n.drive.Run(hw.Stop)
			rep.Stops++
			n.metrics.GridStop()
			if n.atStop(plan, &rep) {
				n.logger.Printf("car: patrol finished after %d stops, %d pots watered", rep.Stops, len(rep.Watered))
				return rep, nil
			}
			n.move(n.cfg.MinSpeed, hw.Forward)
			n.waitUntil(ctx, func(s hw.LineReading) bool { return !s.AllDark() })
		case RuleHardLeft:
			n.move(n.cfg.MaxSpeed, hw.Left)
			n.waitUntil(ctx, func(s hw.LineReading) bool { return s[3] })
			n.move(n.cfg.MinSpeed, hw.Forward)
		case RuleHardRight:
			n.move(n.cfg.MaxSpeed, hw.Right)
			n.waitUntil(ctx, func(s hw.LineReading) bool { return s[1] })
			n.move(n.cfg.MinSpeed, hw.Forward)
		case RuleLeft:
			n.move(n.cfg.MaxSpeed, hw.Left)
		case RuleRight:
			n.move(n.cfg.MaxSpeed, hw.Right)
		case RuleStraight:
			n.move(n.cfg.MinSpeed, hw.Forward)
		case RuleHold:
			rep.Unmatched++
			n.metrics.Unmatched()
		}
	}
}

// waitUntil keeps sampling the line until done holds or ctx ends.
func (n *Navigator) waitUntil(ctx context.Context, done func(hw.LineReading) bool) {
	for ctx.Err() == nil {
		if done(n.read()) {
			return
		}
	}
}

// atStop handles one grid stop and reports whether the patrol is over.
func (n *Navigator) atStop(plan model.WateringPlan, rep *PatrolReport) bool {
	n.progress.Column = n.progress.Stop / StopsPerColumn
	act := StopActions(n.progress.Stop, plan)
	if act.End {
		n.progress.Reset()
		return true
	}
	for _, p := range act.Water {
		n.logger.Printf("car: watering pot %d on the %s (stop %d)", p.Index, p.Side, n.progress.Stop)
		n.arm.Water(p.Side)
		clock.SleepUntil(n.clock, n.clock.Now().Add(n.cfg.PauseAfterWatering))
		rep.Watered = append(rep.Watered, p.Index)
		n.metrics.Watered()
	}
	n.progress.Stop++
	return false
}
