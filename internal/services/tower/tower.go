// Package tower is the control tower orchestrator: it drives the harvesters
// and the car through the five-phase production cycle and halts on the
// first failed phase.
package tower

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/indicator"
	"github.com/LeonardoBeccarini/aquarius/internal/metrics"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/internal/services/event"
	"github.com/LeonardoBeccarini/aquarius/internal/services/persistence"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh"
)

// ===================== Config =====================

type Config struct {
	Layout model.Layout
	Policy model.Policy

	MaxRefill        time.Duration
	RefillStopSettle time.Duration
	InterPhaseDelay  time.Duration
}

// Deps are the tower's collaborators. Channel and Sink are required.
type Deps struct {
	Channel   *mesh.Channel
	Sink      persistence.Sink
	Pump      hw.Pump
	Indicator indicator.Indicator
	Events    event.Recorder
	Metrics   *metrics.Metrics
	Logger    *log.Logger
}

// ===================== Tower =====================

type Tower struct {
	cfg    Config
	ch     *mesh.Channel
	clock  clock.Clock
	sink   persistence.Sink
	pump   hw.Pump
	ind    indicator.Indicator
	events event.Recorder
	m      *metrics.Metrics
	logger *log.Logger

	// mu guards everything below; the control loop is the only writer
	mu      sync.Mutex
	phase   model.Phase
	halted  bool
	lastErr error
	cycleID string
	cycles  int
	potMap  model.PotMap
	plan    model.WateringPlan

	resume chan struct{}
}

func New(cfg Config, d Deps) *Tower {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Indicator == nil {
		d.Indicator = indicator.Nop{}
	}
	if d.Events == nil {
		d.Events = event.Multi(nil)
	}
	if d.Pump == nil {
		d.Pump = nopPump{}
	}
	return &Tower{
		cfg:     cfg,
		ch:      d.Channel,
		clock:   d.Channel.Clock(),
		sink:    d.Sink,
		pump:    d.Pump,
		ind:     d.Indicator,
		events:  d.Events,
		m:       d.Metrics,
		logger:  d.Logger,
		phase:   model.PhaseHarvest,
		cycleID: uuid.NewString(),
		potMap:  model.NewPotMap(cfg.Layout),
		resume:  make(chan struct{}, 1),
	}
}

// Tick runs the current phase once. On success the tower moves to the next
// phase; on failure it halts and keeps the phase until Resume.
func (t *Tower) Tick(ctx context.Context) error {
	t.mu.Lock()
	if t.halted {
		t.mu.Unlock()
		return ErrHalted
	}
	phase, cycleID := t.phase, t.cycleID
	t.mu.Unlock()

	t.ind.Show(indicator.Signal{Status: indicator.PhaseStart, Phase: phase})
	t.ind.Show(indicator.Signal{Status: indicator.Working, Phase: phase})

	start := t.clock.Now()
	err := t.run(ctx, phase)
	took := clock.Since(t.clock, start)

	if err != nil && ctx.Err() != nil {
		// shutdown, not a phase failure
		return ctx.Err()
	}
	t.m.ObservePhase(phase.String(), err, took)
	t.record(phase, cycleID, err, took)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.halted = true
		t.lastErr = err
		t.m.SetHalted(true)
		code := 0
		var pe *PhaseError
		if errors.As(err, &pe) {
			code = pe.Code
		}
		t.ind.Show(indicator.Signal{Status: indicator.Failure, Phase: phase, Code: code})
		t.logger.Printf("tower: %v", err)
		return err
	}
	t.ind.Show(indicator.Signal{Status: indicator.Success, Phase: phase})
	t.logger.Printf("tower: phase %d %s done in %v", phase.Number(), phase, took)
	t.phase = phase.Next()
	if phase == model.PhaseAwaitPatrol {
		t.cycles++
		t.cycleID = uuid.NewString()
	}
	return nil
}

func (t *Tower) run(ctx context.Context, p model.Phase) error {
	switch p {
	case model.PhaseHarvest:
		return t.harvest(ctx)
	case model.PhasePersist:
		return t.persist(ctx)
	case model.PhaseRefill:
		return t.refill(ctx)
	case model.PhasePatrol:
		return t.dispatchPatrol(ctx)
	case model.PhaseAwaitPatrol:
		return t.awaitPatrol(ctx)
	}
	return fail(p, model.NodeControlTower, model.FaultInvalidData, CodeInvalidData, errors.New("unknown phase"))
}

// Run ticks until ctx is done, waiting InterPhaseDelay after every
// successful phase and blocking on Resume while halted.
func (t *Tower) Run(ctx context.Context) error {
	st := t.Status()
	t.logger.Printf("tower: cycle %s starting at phase %s", st.CycleID, st.Phase)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := t.Tick(ctx)
		switch {
		case err == nil:
			if t.sleep(ctx, t.cfg.InterPhaseDelay) != nil {
				return ctx.Err()
			}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.resume:
			}
		}
	}
}

// Resume releases a halted cycle: the failed phase runs again on the next
// tick. It reports whether the tower was halted.
func (t *Tower) Resume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.halted {
		return false
	}
	t.halted = false
	t.m.SetHalted(false)
	t.logger.Printf("tower: resuming at phase %s", t.phase)
	select {
	case t.resume <- struct{}{}:
	default:
	}
	return true
}

// Status is a snapshot of the orchestrator state.
type Status struct {
	Phase     model.Phase
	Halted    bool
	LastError string
	CycleID   string
	Cycles    int
	PotMap    model.PotMap
	Plan      model.WateringPlan
}

func (t *Tower) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Status{
		Phase:   t.phase,
		Halted:  t.halted,
		CycleID: t.cycleID,
		Cycles:  t.cycles,
		PotMap:  t.potMap.Clone(),
		Plan:    append(model.WateringPlan(nil), t.plan...),
	}
	if t.lastErr != nil {
		s.LastError = t.lastErr.Error()
	}
	return s
}

func (t *Tower) record(p model.Phase, cycleID string, err error, took time.Duration) {
	evt := event.CommonEvent{
		EventType:     event.TypePhaseResult,
		SourceService: "tower",
		CycleID:       cycleID,
		Phase:         p.String(),
		Severity:      "info",
		Fields:        map[string]interface{}{"code": int64(0), "duration_ms": took.Milliseconds()},
		Timestamp:     t.clock.Now().UTC(),
	}
	var pe *PhaseError
	if errors.As(err, &pe) {
		evt.Severity = "error"
		evt.Node = pe.Node.String()
		evt.Fields["code"] = int64(pe.Code)
		evt.Fields["fault"] = pe.Kind.Error()
	}
	t.events.Record(evt)
}

// sleep waits d on the tower clock, giving up early when ctx ends.
func (t *Tower) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.clock.After(d):
		return nil
	}
}

type nopPump struct{}

func (nopPump) On()  {}
func (nopPump) Off() {}
