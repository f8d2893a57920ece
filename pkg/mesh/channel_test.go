package mesh_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh/meshtest"
)

func simOpts(c clock.Clock) mesh.Options {
	return mesh.Options{
		ReadTimeout:  3 * time.Second,
		WriteTimeout: time.Second,
		PollInterval: 10 * time.Millisecond,
		Clock:        c,
	}
}

func TestReceiveAccumulatesFragments(t *testing.T) {
	hub := mesh.NewMemory(mesh.WithMaxFrame(3))
	ct := mesh.NewChannel(hub.Attach(model.NodeControlTower), model.NodeControlTower, mesh.Options{ReadTimeout: time.Second, WriteTimeout: time.Second})
	h := mesh.NewChannel(hub.Attach(model.HarvesterAddress(0)), model.HarvesterAddress(0), mesh.Options{ReadTimeout: time.Second, WriteTimeout: time.Second})

	want := []byte{10, 20, 30, 40, 50, 60, 70, 80}
	ctx := context.Background()
	if err := h.Send(ctx, model.NodeControlTower, want); err != nil {
		t.Fatalf("send: %v", err)
	}
	got := make([]byte, len(want))
	if err := ct.Receive(ctx, got); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if ct.LastSender() != model.HarvesterAddress(0) {
		t.Fatalf("last sender = %s", ct.LastSender())
	}
}

func TestReceivePartialTimesOut(t *testing.T) {
	c := clock.NewSim(time.Unix(0, 0))
	net := meshtest.New(model.NodeControlTower, c)
	net.Deliver(0, model.HarvesterAddress(0), []byte{1, 2, 3})
	ch := mesh.NewChannel(net, model.NodeControlTower, simOpts(c))

	err := ch.Receive(context.Background(), make([]byte, 8))
	if !errors.Is(err, mesh.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if c.Elapsed() != 3*time.Second {
		t.Fatalf("elapsed = %v, want exactly the read timeout", c.Elapsed())
	}
}

func TestSendDrivesNetworkEveryAttempt(t *testing.T) {
	c := clock.NewSim(time.Unix(0, 0))
	net := meshtest.New(model.NodeCar, c)
	attempts := 0
	net.Accept = func(meshtest.Frame) bool {
		attempts++
		return attempts == 5
	}
	ch := mesh.NewChannel(net, model.NodeCar, simOpts(c))

	if err := ch.SendSignal(context.Background(), model.NodeControlTower, model.SigRefillAck); err != nil {
		t.Fatalf("send: %v", err)
	}
	if net.Updates() != 5 {
		t.Fatalf("updates = %d, want one per attempt", net.Updates())
	}
	if c.Elapsed() != 40*time.Millisecond {
		t.Fatalf("elapsed = %v", c.Elapsed())
	}
	if sig := net.SentSignals(); len(sig) != 1 || sig[0] != model.SigRefillAck {
		t.Fatalf("sent = %v", sig)
	}
}

func TestSendTimesOut(t *testing.T) {
	c := clock.NewSim(time.Unix(0, 0))
	net := meshtest.New(model.NodeCar, c)
	net.Accept = func(meshtest.Frame) bool { return false }
	reg := prometheus.NewRegistry()
	opts := simOpts(c)
	opts.Metrics = mesh.NewMetrics(reg)
	ch := mesh.NewChannel(net, model.NodeCar, opts)

	err := ch.Send(context.Background(), model.NodeControlTower, []byte{1})
	if !errors.Is(err, mesh.ErrTimeout) {
		t.Fatalf("err = %v", err)
	}
	if c.Elapsed() != time.Second {
		t.Fatalf("elapsed = %v, want the write timeout", c.Elapsed())
	}
	if v := testutil.ToFloat64(opts.Metrics.Sends.WithLabelValues("car", "timeout")); v != 1 {
		t.Fatalf("timeout counter = %v", v)
	}
}

func TestReceiveSignalWithinLaterFrame(t *testing.T) {
	c := clock.NewSim(time.Unix(0, 0))
	net := meshtest.New(model.NodeCar, c)
	net.DeliverSignal(2*time.Second, model.NodeControlTower, model.SigRefillStop)
	ch := mesh.NewChannel(net, model.NodeCar, simOpts(c))

	if _, err := ch.ReceiveSignalWithin(context.Background(), 500*time.Millisecond); !errors.Is(err, mesh.ErrTimeout) {
		t.Fatalf("early poll: %v", err)
	}
	sig, err := ch.ReceiveSignal(context.Background())
	if err != nil || sig != model.SigRefillStop {
		t.Fatalf("sig = %v err = %v", sig, err)
	}
	if c.Elapsed() != 2*time.Second {
		t.Fatalf("elapsed = %v", c.Elapsed())
	}
}

func TestCancelledContext(t *testing.T) {
	c := clock.NewSim(time.Unix(0, 0))
	ch := mesh.NewChannel(meshtest.New(model.NodeCar, c), model.NodeCar, simOpts(c))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ch.ReceiveSignal(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestMemoryDetachedRecipient(t *testing.T) {
	hub := mesh.NewMemory()
	ep := hub.Attach(model.NodeControlTower)
	hub.Attach(model.NodeCar)
	if !ep.Write(mesh.Header{To: model.NodeCar}, []byte{1}) {
		t.Fatal("write to attached node failed")
	}
	hub.Detach(model.NodeCar)
	if ep.Write(mesh.Header{To: model.NodeCar}, []byte{1}) {
		t.Fatal("write to detached node succeeded")
	}
}

func TestMemoryDropRate(t *testing.T) {
	hub := mesh.NewMemory(mesh.WithDropRate(1, 1))
	ep := hub.Attach(model.NodeControlTower)
	car := hub.Attach(model.NodeCar)
	if ep.Write(mesh.Header{To: model.NodeCar}, []byte{1}) {
		t.Fatal("write must be dropped")
	}
	if car.Available() {
		t.Fatal("dropped frame delivered")
	}
}
