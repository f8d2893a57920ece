package mesh

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/rabbitmq"
)

type recordingPublisher struct {
	topic string
	out   *[]published
	fail  bool
}

type published struct {
	topic string
	data  []byte
}

func (p *recordingPublisher) PublishMessage(data []byte) error {
	if p.fail {
		return errors.New("offline")
	}
	*p.out = append(*p.out, published{topic: p.topic, data: data})
	return nil
}

func TestFrameRoundTrip(t *testing.T) {
	h := Header{From: model.NodeCar, To: model.NodeControlTower, ID: 9, Boot: 0xbeef}
	data, err := EncodeFrame(h, []byte{3, 0})
	if err != nil {
		t.Fatal(err)
	}
	got, payload, err := DecodeFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	if got != h || !bytes.Equal(payload, []byte{3, 0}) {
		t.Fatalf("got %v %v", got, payload)
	}
	if _, _, err := DecodeFrame([]byte{0xff}); err == nil {
		t.Fatal("garbage must not decode")
	}
}

func TestMQTTNetworkWriteAndHandle(t *testing.T) {
	var out []published
	factory := func(topic string) rabbitmq.IPublisher {
		return &recordingPublisher{topic: topic, out: &out}
	}
	car := NewMQTTNetwork(model.NodeCar, "rig", factory, nil)
	ct := NewMQTTNetwork(model.NodeControlTower, "rig", factory, nil)

	if !car.Write(Header{To: model.NodeControlTower, ID: 1}, model.SigPatrolStop.Bytes()) {
		t.Fatal("write failed")
	}
	if len(out) != 1 || out[0].topic != "rig/node/0" || ct.Topic() != "rig/node/0" {
		t.Fatalf("published = %+v", out)
	}

	// broker redelivery of the same frame
	for i := 0; i < 2; i++ {
		if err := ct.HandleFrame(out[0].topic, out[0].data); err != nil {
			t.Fatal(err)
		}
	}
	buf := make([]byte, 2)
	h, n := ct.Read(buf)
	if n != 2 || h.From != model.NodeCar || model.DecodeSignal(buf) != model.SigPatrolStop {
		t.Fatalf("read %v %d %v", h, n, buf)
	}
	if ct.Available() {
		t.Fatal("duplicate frame was queued")
	}

	if err := car.HandleFrame(out[0].topic, out[0].data); err == nil {
		t.Fatal("frame for another node must be rejected")
	}
}

func TestMQTTNetworkWriteFailure(t *testing.T) {
	var out []published
	n := NewMQTTNetwork(model.NodeControlTower, "rig", func(topic string) rabbitmq.IPublisher {
		return &recordingPublisher{topic: topic, out: &out, fail: true}
	}, nil)
	if n.Write(Header{To: model.NodeCar}, []byte{1}) {
		t.Fatal("write must report failure")
	}
}

func TestMQTTNetworkRestartedSenderIsNotADuplicate(t *testing.T) {
	var out []published
	factory := func(topic string) rabbitmq.IPublisher {
		return &recordingPublisher{topic: topic, out: &out}
	}
	ct := NewMQTTNetwork(model.NodeControlTower, "rig", factory, nil)
	opts := Options{ReadTimeout: time.Second, WriteTimeout: time.Second}

	// same sequence number from two lives of the car process
	before := NewChannel(NewMQTTNetwork(model.NodeCar, "rig", factory, nil), model.NodeCar, opts)
	if err := before.SendSignal(context.Background(), model.NodeControlTower, model.SigPatrolStop); err != nil {
		t.Fatal(err)
	}
	after := NewChannel(NewMQTTNetwork(model.NodeCar, "rig", factory, nil), model.NodeCar, opts)
	if err := after.SendSignal(context.Background(), model.NodeControlTower, model.SigRefillAck); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("published %d frames", len(out))
	}

	var got []model.Signal
	for _, p := range out {
		if err := ct.HandleFrame(p.topic, p.data); err != nil {
			t.Fatal(err)
		}
		buf := make([]byte, 2)
		if _, n := ct.Read(buf); n == 2 {
			got = append(got, model.DecodeSignal(buf))
		}
	}
	if len(got) != 2 || got[0] != model.SigPatrolStop || got[1] != model.SigRefillAck {
		t.Fatalf("delivered %v", got)
	}
}
