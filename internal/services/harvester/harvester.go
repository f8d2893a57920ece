package harvester

import (
	"context"
	"errors"
	"log"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/hw/sim"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh"
)

// DefaultReadings are the values reported by a harvester with static probes.
var DefaultReadings = []byte{40, 10, 40, 65, 95, 20, 100, 35}

// Responder answers HarvestStart from the control tower with one moisture
// byte per pot.
type Responder struct {
	ch     *mesh.Channel
	probes []hw.MoistureProbe
	logger *log.Logger
}

func NewResponder(ch *mesh.Channel, probes []hw.MoistureProbe, logger *log.Logger) *Responder {
	if logger == nil {
		logger = log.Default()
	}
	return &Responder{ch: ch, probes: probes, logger: logger}
}

// StaticProbes wraps fixed readings as probes.
func StaticProbes(readings []byte) []hw.MoistureProbe {
	out := make([]hw.MoistureProbe, len(readings))
	for i, v := range readings {
		out[i] = sim.StaticProbe(v)
	}
	return out
}

// Readings samples every probe.
func (r *Responder) Readings() []byte {
	out := make([]byte, len(r.probes))
	for i, p := range r.probes {
		out[i] = p.Moisture()
	}
	return out
}

// HandleOnce waits one read window for a signal and answers it. A window
// with no signal is not an error.
func (r *Responder) HandleOnce(ctx context.Context) error {
	sig, err := r.ch.ReceiveSignal(ctx)
	if errors.Is(err, mesh.ErrTimeout) {
		return nil
	}
	if err != nil {
		return err
	}
	if sig != model.SigHarvestStart {
		r.logger.Printf("harvester %s: ignoring %s from %s", r.ch.Self(), sig, r.ch.LastSender())
		return nil
	}
	data := r.Readings()
	if err := r.ch.Send(ctx, model.NodeControlTower, data); err != nil {
		r.logger.Printf("harvester %s: could not send data to control tower: %v", r.ch.Self(), err)
		return err
	}
	r.logger.Printf("harvester %s: data sent to control tower: %v", r.ch.Self(), data)
	return nil
}

// Serve answers requests until ctx is done.
func (r *Responder) Serve(ctx context.Context) error {
	r.logger.Printf("harvester %s: serving %d pots", r.ch.Self(), len(r.probes))
	for {
		if err := r.HandleOnce(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
