package sim

import (
	"testing"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

func TestTankFillsWhilePumping(t *testing.T) {
	c := clock.NewSim(time.Unix(0, 0))
	tank := NewTank(c, 10, 2)

	c.Advance(time.Second)
	if tank.Level() != 10 {
		t.Fatalf("level moved without pump: %v", tank.Level())
	}
	tank.On()
	c.Advance(2 * time.Second)
	tank.Off()
	c.Advance(time.Second)
	if tank.Level() != 6 {
		t.Fatalf("level = %v, want 6", tank.Level())
	}
	if s, e := tank.PumpCycles(); s != 1 || e != 1 {
		t.Fatalf("cycles = %d/%d", s, e)
	}
}

func TestTankGlitches(t *testing.T) {
	tank := NewTank(clock.NewSim(time.Unix(0, 0)), 10, 0).WithGlitches(4)
	zeros := 0
	for i := 0; i < 16; i++ {
		if tank.Distance() == 0 {
			zeros++
		}
	}
	if zeros != 4 {
		t.Fatalf("zeros = %d", zeros)
	}
}

func TestTrackAdvancesOnlyWhileMoving(t *testing.T) {
	tr := NewTrack(Center, AllDark, Center)
	if tr.Read() != Center || tr.Read() != Center {
		t.Fatal("stopped car must not progress")
	}
	tr.Run(hw.Forward)
	tr.Read()
	if tr.Read() != AllDark {
		t.Fatal("moving car must reach the stop")
	}
	tr.Read()
	if !tr.Done() || tr.Read() != Center {
		t.Fatal("last reading repeats")
	}
}

func TestDryingProbe(t *testing.T) {
	c := clock.NewSim(time.Unix(0, 0))
	p := NewDryingProbe(c, 0.5, 0.1)
	if p.Moisture() != 128 {
		t.Fatalf("start = %d", p.Moisture())
	}
	c.Advance(time.Minute)
	if p.Moisture() != 102 {
		t.Fatalf("after a minute = %d", p.Moisture())
	}
	p.Water(time.Minute)
	if p.Moisture() != 255 {
		t.Fatalf("after watering = %d", p.Moisture())
	}
}
