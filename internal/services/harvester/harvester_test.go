package harvester

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh/meshtest"
)

func newResponder(t *testing.T, readings []byte) (*Responder, *meshtest.Script) {
	t.Helper()
	c := clock.NewSim(time.Unix(0, 0))
	self := model.HarvesterAddress(0)
	net := meshtest.New(self, c)
	ch := mesh.NewChannel(net, self, mesh.Options{
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PollInterval: 10 * time.Millisecond,
		Clock:        c,
	})
	return NewResponder(ch, StaticProbes(readings), nil), net
}

func TestRespondsToHarvestStart(t *testing.T) {
	r, net := newResponder(t, DefaultReadings)
	net.DeliverSignal(100*time.Millisecond, model.NodeControlTower, model.SigHarvestStart)

	if err := r.HandleOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	sent := net.Sent()
	if len(sent) != 1 || sent[0].Header.To != model.NodeControlTower || !bytes.Equal(sent[0].Payload, DefaultReadings) {
		t.Fatalf("sent = %+v", sent)
	}
}

func TestIgnoresOtherSignals(t *testing.T) {
	r, net := newResponder(t, DefaultReadings)
	net.DeliverSignal(0, model.NodeCar, model.SigPatrolStop)
	if err := r.HandleOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(net.Sent()) != 0 {
		t.Fatal("responded to a foreign signal")
	}
}

func TestQuietWindowIsNotAnError(t *testing.T) {
	r, _ := newResponder(t, DefaultReadings)
	if err := r.HandleOnce(context.Background()); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestSendFailureReported(t *testing.T) {
	r, net := newResponder(t, DefaultReadings)
	net.Accept = func(meshtest.Frame) bool { return false }
	net.DeliverSignal(0, model.NodeControlTower, model.SigHarvestStart)
	if err := r.HandleOnce(context.Background()); !errors.Is(err, mesh.ErrTimeout) {
		t.Fatalf("err = %v", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	r, _ := newResponder(t, DefaultReadings)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
