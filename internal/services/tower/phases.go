package tower

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeonardoBeccarini/aquarius/internal/indicator"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh"
)

// harvest asks every harvester, in address order, for its pot readings.
// The pot map is replaced only when all harvesters answered with valid data.
func (t *Tower) harvest(ctx context.Context) error {
	const phase = model.PhaseHarvest
	l := t.cfg.Layout
	scratch := model.NewPotMap(l)

	for h := 0; h < l.Harvesters; h++ {
		addr := model.HarvesterAddress(h)
		if err := t.ch.SendSignal(ctx, addr, model.SigHarvestStart); err != nil {
			return fail(phase, addr, model.FaultTimeout, CodeWriteTimeout, err)
		}
		buf := scratch.Harvester(l, h)
		if err := t.ch.Receive(ctx, buf); err != nil {
			return fail(phase, addr, model.FaultTimeout, CodeReadTimeout, err)
		}
		if from := t.ch.LastSender(); from != addr {
			return fail(phase, addr, model.FaultUnexpectedSignal, CodeForeignNode,
				fmt.Errorf("readings came from %s", from))
		}
		if model.AllZero(buf) {
			return fail(phase, addr, model.FaultInvalidData, CodeInvalidData,
				errors.New("all-zero readings"))
		}
		t.logger.Printf("tower: %s readings %v", addr, buf)
	}

	t.mu.Lock()
	t.potMap = scratch
	t.mu.Unlock()
	return nil
}

// persist hands the pot map to the sink.
func (t *Tower) persist(ctx context.Context) error {
	t.mu.Lock()
	readings := t.potMap.Readings(t.cfg.Layout)
	cycleID := t.cycleID
	t.mu.Unlock()

	now := t.clock.Now().UTC()
	for i := range readings {
		readings[i].CycleID = cycleID
		readings[i].Timestamp = now
	}
	if err := t.sink.Write(ctx, readings); err != nil {
		return fail(model.PhasePersist, model.NodeControlTower, model.FaultConnection, CodeWriteTimeout, err)
	}
	return nil
}

// refill starts the car's refill and waits up to MaxRefill for the car to
// report it is full. If the window elapses the tower tells the car to stop;
// an undeliverable stop only degrades the phase.
func (t *Tower) refill(ctx context.Context) error {
	const phase = model.PhaseRefill
	if err := t.ch.SendSignal(ctx, model.NodeCar, model.SigRefillStart); err != nil {
		return fail(phase, model.NodeCar, model.FaultTimeout, CodeWriteTimeout, err)
	}
	ack, err := t.ch.ReceiveSignal(ctx)
	if err != nil {
		return fail(phase, model.NodeCar, model.FaultTimeout, CodeReadTimeout, err)
	}
	if ack != model.SigRefillAck {
		return fail(phase, model.NodeCar, model.FaultUnexpectedSignal, CodeInvalidData,
			fmt.Errorf("got %s from %s instead of %s", ack, t.ch.LastSender(), model.SigRefillAck))
	}

	t.pump.On()

	deadline := t.clock.Now().Add(t.cfg.MaxRefill)
	for {
		remaining := deadline.Sub(t.clock.Now())
		if remaining <= 0 {
			break
		}
		sig, err := t.ch.ReceiveSignalWithin(ctx, remaining)
		if errors.Is(err, mesh.ErrTimeout) {
			break
		}
		if err != nil {
			t.pump.Off()
			return err
		}
		if sig == model.SigRefillStop {
			t.pump.Off()
			t.logger.Printf("tower: car reported the tank full")
			return nil
		}
		t.logger.Printf("tower: ignoring %s from %s during refill", sig, t.ch.LastSender())
	}

	t.pump.Off()
	t.logger.Printf("tower: refill window of %v elapsed, stopping the car", t.cfg.MaxRefill)
	if err := t.ch.SendSignal(ctx, model.NodeCar, model.SigRefillStop); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.ind.Show(indicator.Signal{Status: indicator.Degraded, Phase: phase})
		t.logger.Printf("tower: could not stop the car (%v), waiting %v for its own ceiling", err, t.cfg.RefillStopSettle)
		clock.SleepUntil(t.clock, t.clock.Now().Add(t.cfg.RefillStopSettle))
	}
	return nil
}

// dispatchPatrol computes the watering plan, sends it to the car and waits
// for the car to confirm.
func (t *Tower) dispatchPatrol(ctx context.Context) error {
	const phase = model.PhasePatrol
	t.mu.Lock()
	plan := t.cfg.Policy.Plan(t.potMap)
	t.plan = plan
	t.mu.Unlock()

	if err := t.ch.SendSignal(ctx, model.NodeCar, model.SigPatrolStart); err != nil {
		return fail(phase, model.NodeCar, model.FaultTimeout, CodeWriteTimeout, err)
	}
	if err := t.ch.Send(ctx, model.NodeCar, plan.Bytes()); err != nil {
		return fail(phase, model.NodeCar, model.FaultTimeout, CodeWriteTimeout, fmt.Errorf("plan: %w", err))
	}
	confirm, err := t.ch.ReceiveSignal(ctx)
	if err != nil {
		return fail(phase, model.NodeCar, model.FaultTimeout, CodeReadTimeout, err)
	}
	if confirm != model.SigPatrolStart {
		return fail(phase, model.NodeCar, model.FaultUnexpectedSignal, CodeInvalidData,
			fmt.Errorf("got %s from %s instead of %s", confirm, t.ch.LastSender(), model.SigPatrolStart))
	}
	t.logger.Printf("tower: patrol dispatched, %d of %d pots to water", plan.Count(), len(plan))
	return nil
}

// awaitPatrol blocks until the car reports the end of the patrol. Other
// signals are logged and dropped.
func (t *Tower) awaitPatrol(ctx context.Context) error {
	for {
		sig, err := t.ch.ReceiveSignal(ctx)
		switch {
		case errors.Is(err, mesh.ErrTimeout):
			continue
		case err != nil:
			return err
		case sig == model.SigPatrolStop:
			return nil
		default:
			t.logger.Printf("tower: ignoring %s from %s while awaiting the patrol", sig, t.ch.LastSender())
		}
	}
}
