package hw_test

import (
	"testing"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/hw/sim"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

func TestArmWaterTiming(t *testing.T) {
	c := clock.NewSim(time.Unix(0, 0))
	stepper := sim.NewStepper()
	valve := sim.NewValve(c)
	arm := &hw.Arm{
		Stepper:      stepper,
		Valve:        valve,
		Clock:        c,
		Steps:        512,
		StepInterval: 2 * time.Millisecond,
		WateringTime: 4 * time.Second,
	}

	arm.Water(hw.Left)

	if stepper.Steps(hw.Left) != 512 || stepper.Steps(hw.Right) != 512 {
		t.Fatalf("steps left=%d right=%d", stepper.Steps(hw.Left), stepper.Steps(hw.Right))
	}
	if want := 2*1024*time.Millisecond + 4*time.Second; c.Elapsed() != want || arm.Duration() != want {
		t.Fatalf("elapsed = %v duration = %v, want %v", c.Elapsed(), arm.Duration(), want)
	}
	if o := valve.Openings(); len(o) != 1 || o[0] != 4*time.Second {
		t.Fatalf("valve openings = %v", o)
	}
}

func TestLineReadingAllDark(t *testing.T) {
	if !sim.AllDark.AllDark() || sim.Center.AllDark() {
		t.Fatal("AllDark classification")
	}
}
