package car

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/hw/sim"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh/meshtest"
)

type refillRig struct {
	clock *clock.Sim
	net   *meshtest.Script
	tank  *sim.Tank
	track *sim.Track
	r     *RefillController
}

func newRefillRig(t *testing.T, distance, fillRate float64) *refillRig {
	t.Helper()
	c := clock.NewSim(time.Unix(0, 0))
	net := meshtest.New(model.NodeCar, c)
	ch := mesh.NewChannel(net, model.NodeCar, mesh.Options{
		ReadTimeout:  3 * time.Second,
		WriteTimeout: time.Second,
		PollInterval: 10 * time.Millisecond,
		Clock:        c,
	})
	tank := sim.NewTank(c, distance, fillRate)
	track := sim.NewTrack(sim.Center)
	gauge := &TankGauge{Sensor: tank, Samples: 32, MaxPlausible: 20}
	r := NewRefillController(ch, gauge, tank, track, RefillConfig{
		MinEmptyDist:   4,
		NearFullMargin: 0.3,
		SettleAfterAck: time.Second,
		Ceiling:        11 * time.Second,
		PollInterval:   10 * time.Millisecond,
		Nudge:          300 * time.Millisecond,
		NudgeSpeed:     220,
	}, nil, nil)
	return &refillRig{clock: c, net: net, tank: tank, track: track, r: r}
}

func TestNeedsRefill(t *testing.T) {
	if !NeedsRefill(25, 1024, 4, 0.3) {
		t.Fatal("25cm: 25-4=21 must need a refill")
	}
	if NeedsRefill(4.2, 1024, 4, 0.3) {
		t.Fatal("4.2cm: 0.2 is inside the near-full margin")
	}
	if NeedsRefill(0, 0, 4, 0.3) {
		t.Fatal("no valid samples must decline")
	}
}

type samples struct {
	values []float64
	i      int
}

func (s *samples) Distance() float64 {
	v := s.values[s.i%len(s.values)]
	s.i++
	return v
}

func TestTankGaugeDiscardsInvalid(t *testing.T) {
	g := &TankGauge{Sensor: &samples{values: []float64{0, 10, 25, 14, 20.5, 12}}, Samples: 6, MaxPlausible: 20}
	avg, valid := g.Level()
	if valid != 3 || avg != 12 {
		t.Fatalf("avg = %v valid = %d", avg, valid)
	}
	if !Overfilled(3.9, 1, 4) || Overfilled(0, 0, 4) || Overfilled(4, 5, 4) {
		t.Fatal("over-fill classification")
	}
}

func TestRefillDeclinedNearFull(t *testing.T) {
	rig := newRefillRig(t, 4.2, 1)
	if err := rig.r.Run(context.Background()); !errors.Is(err, ErrRefillDeclined) {
		t.Fatalf("err = %v", err)
	}
	if len(rig.net.Sent()) != 0 {
		t.Fatal("declining must not send anything")
	}
	if starts, _ := rig.tank.PumpCycles(); starts != 0 {
		t.Fatal("declining must not actuate the pump")
	}
}

func TestRefillDeclinedWithoutValidSamples(t *testing.T) {
	rig := newRefillRig(t, 0, 1)
	if err := rig.r.Run(context.Background()); !errors.Is(err, ErrRefillDeclined) {
		t.Fatalf("err = %v", err)
	}
}

func TestRefillAckFailureNoActuation(t *testing.T) {
	rig := newRefillRig(t, 15, 1)
	rig.net.Accept = func(meshtest.Frame) bool { return false }
	err := rig.r.Run(context.Background())
	if !errors.Is(err, model.FaultTimeout) {
		t.Fatalf("err = %v", err)
	}
	if starts, _ := rig.tank.PumpCycles(); starts != 0 {
		t.Fatal("pump started without an ack")
	}
}

func TestRefillStoppedByControlTower(t *testing.T) {
	rig := newRefillRig(t, 15, 1)
	rig.tank = rig.tank.WithGlitches(5)
	rig.net.DeliverSignal(2000*time.Millisecond, model.NodeControlTower, model.SigRefillStop)

	if err := rig.r.Run(context.Background()); err != nil {
		t.Fatalf("err = %v", err)
	}
	if got := rig.net.SentSignals(); len(got) != 1 || got[0] != model.SigRefillAck {
		t.Fatalf("sent = %v", got)
	}
	if rig.clock.Elapsed() != 2000*time.Millisecond {
		t.Fatalf("stop observed at %v", rig.clock.Elapsed())
	}
	if rig.tank.Pumping() {
		t.Fatal("pump left running")
	}
	// pump ran from the end of the settle delay to the stop signal
	if lvl := rig.tank.Level(); math.Abs(lvl-14) > 1e-6 {
		t.Fatalf("level = %v, want 14", lvl)
	}
}

func TestRefillOverfillStopsPump(t *testing.T) {
	rig := newRefillRig(t, 5, 2)

	err := rig.r.Run(context.Background())
	if !errors.Is(err, model.FaultSafetyAbort) {
		t.Fatalf("err = %v", err)
	}
	if rig.tank.Pumping() {
		t.Fatal("pump left running after over-fill")
	}
	sent := rig.net.SentSignals()
	if len(sent) != 2 || sent[0] != model.SigRefillAck || sent[1] != model.SigRefillStop {
		t.Fatalf("sent = %v", sent)
	}
	if len(rig.track.Commands()) != 0 {
		t.Fatal("car moved although the stop was delivered")
	}
}

func TestRefillOverfillUndeliverableStopNudges(t *testing.T) {
	rig := newRefillRig(t, 5, 2)
	rig.net.Accept = func(f meshtest.Frame) bool { return f.Signal() != model.SigRefillStop }

	err := rig.r.Run(context.Background())
	if !errors.Is(err, model.FaultSafetyAbort) {
		t.Fatalf("err = %v", err)
	}
	if rig.tank.Pumping() {
		t.Fatal("pump must be off even when the stop could not be sent")
	}
	cmds := rig.track.Commands()
	if len(cmds) != 2 || cmds[0] != (sim.DriveCommand{Direction: hw.Forward, Speed: 220}) || cmds[1].Direction != hw.Stop {
		t.Fatalf("nudge = %+v", cmds)
	}
}

func TestRefillCeiling(t *testing.T) {
	rig := newRefillRig(t, 15, 0)

	err := rig.r.Run(context.Background())
	if !errors.Is(err, ErrRefillTimeout) {
		t.Fatalf("err = %v", err)
	}
	if rig.tank.Pumping() {
		t.Fatal("pump running past the ceiling")
	}
	if starts, stops := rig.tank.PumpCycles(); starts != 1 || stops != 1 {
		t.Fatalf("pump cycles %d/%d", starts, stops)
	}
	if e := rig.clock.Elapsed(); e < 12*time.Second || e > 12*time.Second+20*time.Millisecond {
		t.Fatalf("elapsed = %v, want settle + ceiling", e)
	}
}
