package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestPhaseCycle(t *testing.T) {
	p := PhaseHarvest
	want := []Phase{PhasePersist, PhaseRefill, PhasePatrol, PhaseAwaitPatrol, PhaseHarvest}
	for i, w := range want {
		p = p.Next()
		if p != w {
			t.Fatalf("step %d: got %s, want %s", i, p, w)
		}
	}
}

func TestAddresses(t *testing.T) {
	if HarvesterAddress(0) != 2 || HarvesterAddress(1) != 3 {
		t.Fatalf("harvester addresses: %d %d", HarvesterAddress(0), HarvesterAddress(1))
	}
	if NodeCar.IsHarvester() || NodeCar.HarvesterIndex() != -1 {
		t.Fatal("car must not be a harvester")
	}
	if HarvesterAddress(1).String() != "h2" {
		t.Fatalf("got %s", HarvesterAddress(1))
	}
}

func TestSignalWire(t *testing.T) {
	b := SigRefillAck.Bytes()
	if len(b) != SignalSize || b[0] != 8 || b[1] != 0 {
		t.Fatalf("wire bytes = %v", b)
	}
	if DecodeSignal(b) != SigRefillAck {
		t.Fatal("decode mismatch")
	}
	if DecodeSignal([]byte{1}) != 0 {
		t.Fatal("short payload must decode to 0")
	}
	if Signal(42).Valid() {
		t.Fatal("42 is not a signal")
	}
}

func TestPlanIsThresholdComparison(t *testing.T) {
	m := PotMap{0, 29, 30, 31, 255, 10}
	plan := Policy{MoistureThreshold: DefaultMoistureThreshold}.Plan(m)
	for i := range m {
		if plan[i] != (m[i] < 30) {
			t.Fatalf("plan[%d] = %v for moisture %d", i, plan[i], m[i])
		}
	}
	if plan.Count() != 3 {
		t.Fatalf("count = %d", plan.Count())
	}
	if got := DecodePlan(plan.Bytes()); fmt.Sprint(got) != fmt.Sprint(plan) {
		t.Fatalf("wire plan = %v, want %v", got, plan)
	}
	if plan.At(-1) || plan.At(99) {
		t.Fatal("out of range must be false")
	}
}

func TestLayoutIndexing(t *testing.T) {
	l := DefaultLayout
	if l.Pots() != 16 {
		t.Fatalf("pots = %d", l.Pots())
	}
	if l.Index(1, 3) != 11 {
		t.Fatalf("index = %d", l.Index(1, 3))
	}
	if h, p := l.Locate(11); h != 1 || p != 3 {
		t.Fatalf("locate = %d,%d", h, p)
	}
	m := NewPotMap(l)
	copy(m.Harvester(l, 1), []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if m[8] != 1 || m[15] != 8 || m[7] != 0 {
		t.Fatalf("harvester slice misplaced: %v", m)
	}
	r := m.Readings(l)
	if r[8].Harvester != 2 || r[8].Pot != 1 || r[8].Moisture != 1 {
		t.Fatalf("reading = %+v", r[8])
	}
	if err := (Layout{}).Validate(); err == nil {
		t.Fatal("empty layout must not validate")
	}
}

func TestAllZero(t *testing.T) {
	if !AllZero(make([]byte, 8)) {
		t.Fatal("zeros")
	}
	if AllZero([]byte{0, 0, 1}) {
		t.Fatal("non zero")
	}
}

func TestFaultIsError(t *testing.T) {
	err := fmt.Errorf("harvest: %w", FaultInvalidData)
	if !errors.Is(err, FaultInvalidData) || errors.Is(err, FaultTimeout) {
		t.Fatal("fault wrapping")
	}
}
