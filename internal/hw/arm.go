package hw

import (
	"time"

	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

// Arm is the watering arm: a stepper swings the nozzle over the pot, the
// valve stays open for WateringTime, then the arm swings back.
type Arm struct {
	Stepper Stepper
	Valve   Valve // may be nil
	Clock   clock.Clock

	Steps        int
	StepInterval time.Duration
	WateringTime time.Duration
}

// Water runs one full watering sequence toward side (Left or Right). Step
// times are scheduled from the start of each swing, so the swing lasts
// exactly Steps*StepInterval.
func (a *Arm) Water(side Direction) {
	back := Right
	if side == Right {
		back = Left
	}
	a.swing(side)
	if a.Valve != nil {
		a.Valve.Open()
	}
	clock.SleepUntil(a.Clock, a.Clock.Now().Add(a.WateringTime))
	if a.Valve != nil {
		a.Valve.Close()
	}
	a.swing(back)
}

// Duration is the wall time of one Water call.
func (a *Arm) Duration() time.Duration {
	return 2*time.Duration(a.Steps)*a.StepInterval + a.WateringTime
}

func (a *Arm) swing(d Direction) {
	start := a.Clock.Now()
	for i := 0; i < a.Steps; i++ {
		a.Stepper.Step(d)
		clock.SleepUntil(a.Clock, start.Add(time.Duration(i+1)*a.StepInterval))
	}
}
