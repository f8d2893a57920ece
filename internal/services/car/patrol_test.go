package car

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/hw/sim"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

func TestSteerRules(t *testing.T) {
	cases := []struct {
		s    hw.LineReading
		want Rule
	}{
		{hw.LineReading{true, true, true, true, true}, RuleGridStop},
		{hw.LineReading{true, false, false, false, false}, RuleHardLeft},
		{hw.LineReading{true, true, false, false, false}, RuleHardLeft},
		{hw.LineReading{false, false, false, false, true}, RuleHardRight},
		{hw.LineReading{false, true, true, false, false}, RuleLeft},
		{hw.LineReading{false, false, true, true, false}, RuleRight},
		{hw.LineReading{false, false, true, false, false}, RuleStraight},
		{hw.LineReading{false, true, true, true, false}, RuleStraight},
		{hw.LineReading{}, RuleHold},
		{hw.LineReading{true, false, false, false, true}, RuleHold},
	}
	for _, c := range cases {
		if got := Steer(c.s); got != c.want {
			t.Errorf("Steer(%v) = %s, want %s", c.s, got, c.want)
		}
	}
}

func planWith(n int, pots ...int) model.WateringPlan {
	p := make(model.WateringPlan, n)
	for _, i := range pots {
		p[i] = true
	}
	return p
}

func TestStopActions(t *testing.T) {
	plan := planWith(16, 2, 5, 9, 15)

	a := StopActions(5, plan)
	want := []PotAction{{Index: 5, Side: hw.Left}, {Index: 9, Side: hw.Right}}
	if a.Column != 1 || a.End || !reflect.DeepEqual(a.Water, want) {
		t.Fatalf("stop 5 = %+v", a)
	}

	if a := StopActions(5, planWith(16, 9)); len(a.Water) != 1 || a.Water[0].Index != 9 {
		t.Fatalf("stop 5 gated by its own bits: %+v", a)
	}
	if a := StopActions(2, plan); a.Column != 0 || len(a.Water) != 1 || a.Water[0] != (PotAction{2, hw.Left}) {
		t.Fatalf("stop 2 = %+v", a)
	}
	if a := StopActions(11, plan); a.Column != 2 || len(a.Water) != 1 || a.Water[0] != (PotAction{15, hw.Right}) {
		t.Fatalf("stop 11 = %+v", a)
	}
	if a := StopActions(12, plan); a.Column != 3 || !a.End || len(a.Water) != 0 {
		t.Fatalf("stop 12 = %+v", a)
	}
}

type navRig struct {
	clock   *clock.Sim
	track   *sim.Track
	stepper *sim.Stepper
	nav     *Navigator
}

func newNavRig(track *sim.Track) *navRig {
	c := clock.NewSim(time.Unix(0, 0))
	stepper := sim.NewStepper()
	arm := &hw.Arm{Stepper: stepper, Valve: sim.NewValve(c), Clock: c, Steps: 512, StepInterval: 2 * time.Millisecond, WateringTime: 4 * time.Second}
	nav := NewNavigator(track, track, arm, c, NavigatorConfig{
		MinSpeed:           100,
		MaxSpeed:           220,
		RollOut:            500 * time.Millisecond,
		PauseAfterWatering: 500 * time.Millisecond,
		SampleInterval:     time.Millisecond,
	}, nil, nil)
	return &navRig{clock: c, track: track, stepper: stepper, nav: nav}
}

func gridReadings(stops int) []hw.LineReading {
	var r []hw.LineReading
	for s := 0; s < stops; s++ {
		r = append(r, sim.Center, sim.Center, sim.Center, sim.AllDark, sim.AllDark)
	}
	return append(r, sim.Center)
}

func TestPatrolAllFalsePlanWatersNothing(t *testing.T) {
	rig := newNavRig(sim.GridTrack(13, 3, 2))

	rep, err := rig.nav.Patrol(context.Background(), planWith(16))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Stops != 13 || len(rep.Watered) != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if rig.stepper.Steps(hw.Left)+rig.stepper.Steps(hw.Right) != 0 {
		t.Fatal("arm moved with an all-false plan")
	}
	if p := rig.nav.Progress(); p.Stop != 0 || p.Column != 0 {
		t.Fatalf("progress not reset: %+v", p)
	}
	if rig.track.Direction() != hw.Stop {
		t.Fatalf("car still driving %s", rig.track.Direction())
	}
}

func TestPatrolWatersPlannedPots(t *testing.T) {
	rig := newNavRig(sim.GridTrack(13, 3, 2))

	rep, err := rig.nav.Patrol(context.Background(), planWith(16, 0, 5, 9, 15))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rep.Watered, []int{0, 5, 9, 15}) {
		t.Fatalf("watered = %v", rep.Watered)
	}
	if rig.stepper.Steps(hw.Left) != 4*512 || rig.stepper.Steps(hw.Right) != 4*512 {
		t.Fatalf("steps = %d/%d", rig.stepper.Steps(hw.Left), rig.stepper.Steps(hw.Right))
	}
}

func TestPatrolHardLeftWaitsForSensor3(t *testing.T) {
	s3 := hw.LineReading{false, false, false, true, false}
	readings := append([]hw.LineReading{sim.FarLeft, sim.Off, s3}, gridReadings(13)...)
	rig := newNavRig(sim.NewTrack(readings...))

	if _, err := rig.nav.Patrol(context.Background(), planWith(16)); err != nil {
		t.Fatal(err)
	}
	cmds := rig.track.Commands()
	// roll-out, hard left, back to forward
	if len(cmds) < 3 || cmds[1] != (sim.DriveCommand{Direction: hw.Left, Speed: 220}) || cmds[2] != (sim.DriveCommand{Direction: hw.Forward, Speed: 100}) {
		t.Fatalf("commands = %+v", cmds[:3])
	}
}

func TestPatrolUnmatchedHoldsLastCommand(t *testing.T) {
	readings := append([]hw.LineReading{sim.Off, sim.Off}, gridReadings(13)...)
	rig := newNavRig(sim.NewTrack(readings...))

	rep, err := rig.nav.Patrol(context.Background(), planWith(16))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Unmatched != 2 {
		t.Fatalf("unmatched = %d", rep.Unmatched)
	}
	if cmds := rig.track.Commands(); len(cmds) < 2 || cmds[1] != (sim.DriveCommand{Direction: hw.Forward, Speed: 100}) {
		t.Fatalf("commands = %+v", cmds)
	}
}

func TestPatrolCancelled(t *testing.T) {
	rig := newNavRig(sim.NewTrack(sim.Center))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rig.nav.Patrol(ctx, planWith(16)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if rig.track.Direction() != hw.Stop {
		t.Fatal("drive not stopped on cancel")
	}
}
