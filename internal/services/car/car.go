package car

import (
	"context"
	"errors"
	"log"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/metrics"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh"
)

// Car is the car node: it waits for commands from the control tower and
// runs a refill or a patrol.
type Car struct {
	ch      *mesh.Channel
	refill  *RefillController
	nav     *Navigator
	battery hw.Voltmeter
	layout  model.Layout

	LowBattery float64
	// OnPatrolDone runs after every completed patrol, before PatrolStop is sent.
	OnPatrolDone func(PatrolReport)

	logger  *log.Logger
	metrics *metrics.Metrics
}

func New(ch *mesh.Channel, refill *RefillController, nav *Navigator, battery hw.Voltmeter, layout model.Layout, m *metrics.Metrics, logger *log.Logger) *Car {
	if logger == nil {
		logger = log.Default()
	}
	return &Car{
		ch:         ch,
		refill:     refill,
		nav:        nav,
		battery:    battery,
		layout:     layout,
		LowBattery: 11.1,
		logger:     logger,
		metrics:    m,
	}
}

// checkBattery only warns; the car keeps operating on a low battery.
func (c *Car) checkBattery() {
	if c.battery == nil {
		return
	}
	if v := c.battery.Volts(); v < c.LowBattery {
		c.logger.Printf("car: WARNING low battery level %.2fV", v)
	}
}

// HandleOnce waits one read window for a command and runs it.
func (c *Car) HandleOnce(ctx context.Context) error {
	c.checkBattery()

	sig, err := c.ch.ReceiveSignal(ctx)
	if errors.Is(err, mesh.ErrTimeout) {
		return nil
	}
	if err != nil {
		return err
	}

	switch sig {
	case model.SigRefillStart:
		c.logger.Printf("car: refilling")
		err := c.refill.Run(ctx)
		switch {
		case err == nil, errors.Is(err, ErrRefillDeclined), errors.Is(err, ErrRefillTimeout):
		case errors.Is(err, model.FaultSafetyAbort):
			c.logger.Printf("car: refill aborted: %v", err)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			c.logger.Printf("car: refill failed: %v", err)
		}
		return nil
	case model.SigPatrolStart:
		c.logger.Printf("car: patrolling")
		return c.patrol(ctx)
	default:
		c.logger.Printf("car: ignoring %s from %s", sig, c.ch.LastSender())
		return nil
	}
}

// patrol reads the watering plan, confirms the start, patrols and reports
// the end to the control tower.
func (c *Car) patrol(ctx context.Context) error {
	buf := make([]byte, c.layout.Pots())
	if err := c.ch.Receive(ctx, buf); err != nil {
		c.logger.Printf("car: ERROR reading watering data failed: %v", err)
		return ctx.Err()
	}
	plan := model.DecodePlan(buf)

	if err := c.ch.SendSignal(ctx, model.NodeControlTower, model.SigPatrolStart); err != nil {
		c.logger.Printf("car: ERROR confirming patrol failed: %v", err)
		return ctx.Err()
	}

	rep, err := c.nav.Patrol(ctx, plan)
	if err != nil {
		return err
	}
	c.metrics.PatrolDone()
	c.logger.Printf("car: patrol done, watered %v", rep.Watered)
	if c.OnPatrolDone != nil {
		c.OnPatrolDone(rep)
	}

	return c.finishPatrol(ctx)
}

// finishPatrol retries PatrolStop until it is delivered or ctx is done.
func (c *Car) finishPatrol(ctx context.Context) error {
	for {
		err := c.ch.SendSignal(ctx, model.NodeControlTower, model.SigPatrolStop)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Printf("car: ERROR telling the control tower the patrol ended: %v", err)
	}
}

// Serve handles commands until ctx is done.
func (c *Car) Serve(ctx context.Context) error {
	c.logger.Printf("car: ready")
	for {
		if err := c.HandleOnce(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
