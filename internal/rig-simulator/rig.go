// Package rig_simulator runs a whole rig in one process: the control tower,
// the car and the harvesters talk over an in-memory mesh and drive
// simulated hardware on the wall clock.
package rig_simulator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/config"
	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/hw/sim"
	"github.com/LeonardoBeccarini/aquarius/internal/indicator"
	"github.com/LeonardoBeccarini/aquarius/internal/metrics"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/internal/node"
	"github.com/LeonardoBeccarini/aquarius/internal/services/car"
	"github.com/LeonardoBeccarini/aquarius/internal/services/event"
	"github.com/LeonardoBeccarini/aquarius/internal/services/harvester"
	"github.com/LeonardoBeccarini/aquarius/internal/services/persistence"
	"github.com/LeonardoBeccarini/aquarius/internal/services/tower"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh"
)

// ====== Tunables ======
const (
	// tankStart: distance from the sensor to the water when the car leaves
	// the depot, in cm.
	tankStart = 15.0

	// trackBetween / trackDark: readings of straight line before each grid
	// stop and readings the stop itself lasts.
	trackBetween = 20
	trackDark    = 5

	defaultBattery = 12.0
)

type Options struct {
	// Readings are the static readings per harvester. A harvester without
	// readings gets drying probes seeded from DefaultReadings.
	Readings [][]byte
	// Silent harvesters are on the mesh but never answer.
	Silent []int

	// TankFillRate is how fast the pump fills the car's tank, cm/s.
	TankFillRate float64
	Battery      float64

	DropRate float64
	Seed     int64

	Sink      persistence.Sink
	Events    event.Recorder
	Indicator indicator.Indicator
	Metrics   *metrics.Metrics
	Logger    *log.Logger
}

// Rig is one simulated installation.
type Rig struct {
	cfg    *config.Config
	logger *log.Logger

	Net        *mesh.Memory
	Tower      *tower.Tower
	Car        *car.Car
	Harvesters []*harvester.Responder

	Tank      *sim.Tank
	Track     *sim.Track
	Stepper   *sim.Stepper
	TowerPump *sim.Pump

	mu      sync.Mutex
	patrols []car.PatrolReport

	wg sync.WaitGroup
}

// New builds the rig from cfg. Nothing runs until Start.
func New(cfg *config.Config, opts Options) (*Rig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.TankFillRate <= 0 {
		opts.TankFillRate = 1
	}
	if opts.Battery <= 0 {
		opts.Battery = defaultBattery
	}
	if opts.Sink == nil {
		opts.Sink = &persistence.MemorySink{}
	}

	var netOpts []mesh.MemoryOption
	if opts.DropRate > 0 {
		netOpts = append(netOpts, mesh.WithDropRate(opts.DropRate, opts.Seed))
	}
	clk := clock.Real()
	r := &Rig{
		cfg:       cfg,
		logger:    logger,
		Net:       mesh.NewMemory(netOpts...),
		TowerPump: &sim.Pump{},
		Stepper:   sim.NewStepper(),
	}
	channel := func(addr model.NodeAddress) *mesh.Channel {
		return mesh.NewChannel(r.Net.Attach(addr), addr, node.ChannelOptions(cfg, clk, nil))
	}

	r.Tower = tower.New(tower.Config{
		Layout:           cfg.Shared.Layout,
		Policy:           model.Policy{MoistureThreshold: cfg.Shared.MoistureThreshold},
		MaxRefill:        cfg.Shared.MaxRefill,
		RefillStopSettle: cfg.Tower.RefillStopSettle,
		InterPhaseDelay:  cfg.Shared.InterPhaseDelay,
	}, tower.Deps{
		Channel:   channel(model.NodeControlTower),
		Sink:      opts.Sink,
		Pump:      r.TowerPump,
		Indicator: opts.Indicator,
		Events:    opts.Events,
		Metrics:   opts.Metrics,
		Logger:    logger,
	})

	r.Car = r.buildCar(channel(model.NodeCar), clk, opts)

	silent := make(map[int]bool, len(opts.Silent))
	for _, h := range opts.Silent {
		silent[h] = true
	}
	for h := 0; h < cfg.Shared.Layout.Harvesters; h++ {
		ch := channel(model.HarvesterAddress(h))
		if silent[h] {
			continue
		}
		probes, err := harvesterProbes(cfg, opts, h, clk)
		if err != nil {
			return nil, err
		}
		r.Harvesters = append(r.Harvesters, harvester.NewResponder(ch, probes, logger))
	}
	return r, nil
}

func (r *Rig) buildCar(ch *mesh.Channel, clk clock.Clock, opts Options) *car.Car {
	cfg := r.cfg
	r.Track = sim.GridTrack(3*car.StopsPerColumn+1, trackBetween, trackDark)
	r.Tank = sim.NewTank(clk, tankStart, opts.TankFillRate)

	arm := &hw.Arm{
		Stepper:      r.Stepper,
		Clock:        clk,
		Steps:        cfg.Car.ArmSteps,
		StepInterval: cfg.Car.StepInterval,
		WateringTime: cfg.Car.WateringTime,
	}
	gauge := &car.TankGauge{Sensor: r.Tank, Samples: cfg.Car.TankSamples, MaxPlausible: cfg.Car.MaxPlausible}
	refill := car.NewRefillController(ch, gauge, r.Tank, r.Track, car.RefillConfig{
		MinEmptyDist:   cfg.Shared.MinEmptyDist,
		NearFullMargin: cfg.Shared.NearFullMargin,
		SettleAfterAck: cfg.Car.SettleAfterAck,
		Ceiling:        cfg.RefillCeiling(),
		PollInterval:   cfg.Shared.PollInterval,
		Nudge:          cfg.Car.OverfillNudge,
		NudgeSpeed:     cfg.Car.MaxSpeed,
	}, opts.Metrics, r.logger)
	nav := car.NewNavigator(r.Track, r.Track, arm, clk, car.NavigatorConfig{
		MinSpeed:           cfg.Car.MinSpeed,
		MaxSpeed:           cfg.Car.MaxSpeed,
		RollOut:            cfg.Car.RollOut,
		PauseAfterWatering: cfg.Car.PauseAfterWatering,
		SampleInterval:     cfg.Shared.PollInterval,
	}, opts.Metrics, r.logger)

	c := car.New(ch, refill, nav, sim.Battery(opts.Battery), cfg.Shared.Layout, opts.Metrics, r.logger)
	c.LowBattery = cfg.Car.LowBattery
	c.OnPatrolDone = func(rep car.PatrolReport) {
		r.mu.Lock()
		r.patrols = append(r.patrols, rep)
		r.mu.Unlock()
		r.Track.Rewind()
		r.Tank.Set(tankStart)
	}
	return c
}

func harvesterProbes(cfg *config.Config, opts Options, h int, clk clock.Clock) ([]hw.MoistureProbe, error) {
	pots := cfg.Shared.Layout.PotsPerHarvester
	if h < len(opts.Readings) && opts.Readings[h] != nil {
		if len(opts.Readings[h]) != pots {
			return nil, fmt.Errorf("harvester %d: %d readings for %d pots", h, len(opts.Readings[h]), pots)
		}
		return harvester.StaticProbes(opts.Readings[h]), nil
	}
	probes := make([]hw.MoistureProbe, pots)
	for i := range probes {
		seed := harvester.DefaultReadings[i%len(harvester.DefaultReadings)]
		probes[i] = sim.NewDryingProbe(clk, float64(seed)/255, cfg.Harvester.DecayPerMinute)
	}
	return probes, nil
}

// Start runs the car and the harvesters until ctx is done.
func (r *Rig) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.Car.Serve(ctx)
	}()
	for _, h := range r.Harvesters {
		r.wg.Add(1)
		go func(h *harvester.Responder) {
			defer r.wg.Done()
			_ = h.Serve(ctx)
		}(h)
	}
}

// Wait blocks until every node started by Start has returned.
func (r *Rig) Wait() { r.wg.Wait() }

// RunCycles ticks the tower until n more cycles completed, pausing the
// inter-phase delay after each phase. It stops at the first failed phase.
func (r *Rig) RunCycles(ctx context.Context, n int) error {
	target := r.Tower.Status().Cycles + n
	for r.Tower.Status().Cycles < target {
		if err := r.Tower.Tick(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.Shared.InterPhaseDelay):
		}
	}
	return nil
}

// Patrols returns the report of every completed patrol.
func (r *Rig) Patrols() []car.PatrolReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]car.PatrolReport(nil), r.patrols...)
}

// FastConfig shrinks every timing of cfg so a full cycle takes about a
// second.
func FastConfig() *config.Config {
	cfg := config.Default()
	s := &cfg.Shared
	s.ReadTimeout = 300 * time.Millisecond
	s.WriteTimeout = 150 * time.Millisecond
	s.PollInterval = time.Millisecond
	s.MaxRefill = 400 * time.Millisecond
	s.InterPhaseDelay = 10 * time.Millisecond

	cfg.Tower.RefillStopSettle = 100 * time.Millisecond

	c := &cfg.Car
	c.SettleAfterAck = 10 * time.Millisecond
	c.RefillGrace = 300 * time.Millisecond
	c.TankSamples = 16
	c.OverfillNudge = 5 * time.Millisecond
	c.WateringTime = 5 * time.Millisecond
	c.ArmSteps = 4
	c.StepInterval = 100 * time.Microsecond
	c.PauseAfterWatering = 2 * time.Millisecond
	c.RollOut = 5 * time.Millisecond
	return cfg
}
