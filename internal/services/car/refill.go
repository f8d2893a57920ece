package car

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/metrics"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh"
)

var (
	// ErrRefillDeclined: the tank is already near full, nothing was sent.
	ErrRefillDeclined = errors.New("refill declined: water too close to the maximum")
	// ErrRefillTimeout: the pump ceiling passed without a stop signal.
	ErrRefillTimeout = errors.New("refill timeout")
)

type RefillConfig struct {
	MinEmptyDist   float64
	NearFullMargin float64

	SettleAfterAck time.Duration
	// Ceiling bounds how long the pump may run.
	Ceiling time.Duration
	// PollInterval bounds each wait for a stop signal between two level checks.
	PollInterval time.Duration

	// On an over-fill whose stop signal could not be sent, the car drives
	// forward at NudgeSpeed for Nudge to move the tank away from the spout.
	Nudge      time.Duration
	NudgeSpeed int
}

// RefillController runs one refill on RefillStart.
type RefillController struct {
	ch    *mesh.Channel
	gauge *TankGauge
	pump  hw.Pump
	drive hw.Drive
	clock clock.Clock
	cfg   RefillConfig

	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewRefillController(ch *mesh.Channel, gauge *TankGauge, pump hw.Pump, drive hw.Drive, cfg RefillConfig, m *metrics.Metrics, logger *log.Logger) *RefillController {
	if logger == nil {
		logger = log.Default()
	}
	return &RefillController{
		ch:      ch,
		gauge:   gauge,
		pump:    pump,
		drive:   drive,
		clock:   ch.Clock(),
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// Run executes the refill handshake. It returns nil when the control tower
// stopped the refill, ErrRefillDeclined when the tank did not need water,
// ErrRefillTimeout when the ceiling passed and an error matching
// model.FaultSafetyAbort on over-fill. The pump is off whenever Run returns.
func (r *RefillController) Run(ctx context.Context) error {
	avg, valid := r.gauge.Level()
	if !NeedsRefill(avg, valid, r.cfg.MinEmptyDist, r.cfg.NearFullMargin) {
		r.logger.Printf("car: no water needed, level %.2fcm (%d valid samples)", avg, valid)
		r.metrics.Refill("declined")
		return ErrRefillDeclined
	}

	if err := r.ch.SendSignal(ctx, model.NodeControlTower, model.SigRefillAck); err != nil {
		r.logger.Printf("car: refill ack not sent: %v", err)
		r.metrics.Refill("ack_failed")
		return fmt.Errorf("send refill ack: %w", errors.Join(model.FaultTimeout, err))
	}

	clock.SleepUntil(r.clock, r.clock.Now().Add(r.cfg.SettleAfterAck))

	r.logger.Printf("car: pouring water, level %.2fcm", avg)
	r.pump.On()
	defer r.pump.Off()

	deadline := r.clock.Now().Add(r.cfg.Ceiling)
	for !r.clock.Now().After(deadline) {
		if level, ok := r.gauge.Level(); Overfilled(level, ok, r.cfg.MinEmptyDist) {
			return r.overfill(ctx, level)
		}

		sig, err := r.ch.ReceiveSignalWithin(ctx, r.cfg.PollInterval)
		switch {
		case err == nil && sig == model.SigRefillStop:
			r.logger.Printf("car: refill succeeded after %v", r.elapsed(deadline))
			r.metrics.Refill("ok")
			return nil
		case err == nil:
			r.logger.Printf("car: ignoring %s from %s while refilling", sig, r.ch.LastSender())
		case !errors.Is(err, mesh.ErrTimeout):
			return err
		}
	}

	r.logger.Printf("car: WARNING refill timeout after %v", r.cfg.Ceiling)
	r.metrics.Refill("timeout")
	return ErrRefillTimeout
}

func (r *RefillController) elapsed(deadline time.Time) time.Duration {
	return r.cfg.Ceiling - deadline.Sub(r.clock.Now())
}

// overfill shuts the pump before anything else, then tries to tell the
// control tower.
func (r *RefillController) overfill(ctx context.Context, level float64) error {
	r.pump.Off()
	r.logger.Printf("car: over-fill at %.2fcm, stopping refill", level)
	r.metrics.Refill("safety_abort")

	if err := r.ch.SendSignal(ctx, model.NodeControlTower, model.SigRefillStop); err != nil {
		r.logger.Printf("car: ERROR refill stop not sent: %v", err)
		r.nudge()
	}
	return fmt.Errorf("tank level %.2fcm: %w", level, model.FaultSafetyAbort)
}

func (r *RefillController) nudge() {
	if r.drive == nil || r.cfg.Nudge <= 0 {
		return
	}
	r.drive.SetSpeed(r.cfg.NudgeSpeed)
	r.drive.Run(hw.Forward)
	clock.SleepUntil(r.clock, r.clock.Now().Add(r.cfg.Nudge))
	r.drive.Run(hw.Stop)
	r.drive.SetSpeed(0)
}
