// Package metrics holds the Prometheus collectors of the rig nodes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	PhaseRuns     *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	Halted        prometheus.Gauge

	RefillOutcomes  *prometheus.CounterVec
	PotsWatered     prometheus.Counter
	GridStops       prometheus.Counter
	SteerUnmatched  prometheus.Counter
	PatrolsFinished prometheus.Counter
}

// New creates the collectors and registers them on reg when reg is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PhaseRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tower_phase_runs_total",
			Help: "Phase executions by phase and outcome.",
		}, []string{"phase", "outcome"}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tower_phase_duration_seconds",
			Help:    "Phase execution time.",
			Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 300},
		}, []string{"phase"}),
		Halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tower_halted",
			Help: "1 while the cycle is halted on a failed phase.",
		}),
		RefillOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "car_refill_total",
			Help: "Refill requests by outcome.",
		}, []string{"outcome"}),
		PotsWatered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "car_pots_watered_total",
			Help: "Pots watered during patrols.",
		}),
		GridStops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "car_grid_stops_total",
			Help: "Grid stops reached during patrols.",
		}),
		SteerUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "car_steer_unmatched_total",
			Help: "Line readings matching no steering rule.",
		}),
		PatrolsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "car_patrols_total",
			Help: "Completed patrols.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PhaseRuns, m.PhaseDuration, m.Halted,
			m.RefillOutcomes, m.PotsWatered, m.GridStops, m.SteerUnmatched, m.PatrolsFinished)
	}
	return m
}

// ObservePhase records one phase run.
func (m *Metrics) ObservePhase(phase string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.PhaseRuns.WithLabelValues(phase, outcome).Inc()
	m.PhaseDuration.WithLabelValues(phase).Observe(took.Seconds())
}

func (m *Metrics) SetHalted(halted bool) {
	if m == nil {
		return
	}
	if halted {
		m.Halted.Set(1)
	} else {
		m.Halted.Set(0)
	}
}

func (m *Metrics) Refill(outcome string) {
	if m != nil {
		m.RefillOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Watered() {
	if m != nil {
		m.PotsWatered.Inc()
	}
}

func (m *Metrics) GridStop() {
	if m != nil {
		m.GridStops.Inc()
	}
}

func (m *Metrics) Unmatched() {
	if m != nil {
		m.SteerUnmatched.Inc()
	}
}

func (m *Metrics) PatrolDone() {
	if m != nil {
		m.PatrolsFinished.Inc()
	}
}
