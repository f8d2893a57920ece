package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObservePhase("HARVEST", nil, time.Second)
	m.SetHalted(true)
	m.Refill("ok")
	m.Watered()
	m.GridStop()
	m.Unmatched()
	m.PatrolDone()
}

func TestObservePhase(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePhase("HARVEST", nil, 2*time.Second)
	m.ObservePhase("HARVEST", errors.New("timeout"), time.Second)
	m.SetHalted(true)

	if got := testutil.ToFloat64(m.PhaseRuns.WithLabelValues("HARVEST", "failed")); got != 1 {
		t.Fatalf("failed runs = %v", got)
	}
	if got := testutil.ToFloat64(m.Halted); got != 1 {
		t.Fatalf("halted = %v", got)
	}
	if n := testutil.CollectAndCount(m.PhaseDuration); n != 1 {
		t.Fatalf("%d duration series", n)
	}
	if n, err := testutil.GatherAndCount(reg, "tower_phase_runs_total"); err != nil || n != 2 {
		t.Fatalf("gathered %d runs series: %v", n, err)
	}
}
