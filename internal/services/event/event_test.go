package event

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakePublisher struct {
	sent [][]byte
	err  error
}

func (p *fakePublisher) PublishMessage(data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, data)
	return nil
}

type up bool

func (u up) IsConnectionOpen() bool { return bool(u) }
func (u up) Ready() bool            { return bool(u) }

func phaseEvent() CommonEvent {
	return CommonEvent{
		EventType:     TypePhaseResult,
		SourceService: "tower",
		CycleID:       "c-1",
		Phase:         "harvest",
		Node:          "h2",
		Severity:      "error",
		Fields:        map[string]interface{}{"code": int64(2)},
		Timestamp:     time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestPublisherRoundTrip(t *testing.T) {
	pub := &fakePublisher{}
	NewPublisher(pub, nil).Record(phaseEvent())
	if len(pub.sent) != 1 {
		t.Fatalf("published %d", len(pub.sent))
	}
	got, err := Decode(pub.sent[0])
	if err != nil {
		t.Fatal(err)
	}
	if got.Phase != "harvest" || got.Node != "h2" || got.CycleID != "c-1" || !got.Timestamp.Equal(phaseEvent().Timestamp) {
		t.Fatalf("decoded %+v", got)
	}
	if code, _ := got.Fields["code"].(float64); code != 2 {
		t.Fatalf("code field = %v", got.Fields["code"])
	}
}

func TestPublisherFailureDoesNotPanic(t *testing.T) {
	NewPublisher(&fakePublisher{err: errors.New("offline")}, nil).Record(phaseEvent())
}

func TestDecodeDefaults(t *testing.T) {
	evt, err := Decode([]byte(`{"event_type":"refill.outcome"}`))
	if err != nil {
		t.Fatal(err)
	}
	if evt.Severity != "info" || evt.Timestamp.IsZero() {
		t.Fatalf("defaults not applied: %+v", evt)
	}
	if _, err := Decode([]byte(`{"phase":"persist"}`)); err == nil {
		t.Fatal("event without type accepted")
	}
	if _, err := Decode([]byte(`{`)); err == nil {
		t.Fatal("broken json accepted")
	}
}

func TestEventToPoint(t *testing.T) {
	p := EventToPoint(phaseEvent())
	if p.Name() != "system_event" {
		t.Fatalf("measurement %q", p.Name())
	}
	tags := map[string]string{}
	for _, tg := range p.TagList() {
		tags[tg.Key] = tg.Value
	}
	if tags["phase"] != "harvest" || tags["node"] != "h2" || tags["cycle_id"] != "c-1" || tags["event_type"] != TypePhaseResult {
		t.Fatalf("tags = %v", tags)
	}
	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["count"] != int64(1) || fields["code"] != int64(2) || fields["ok"] != false {
		t.Fatalf("fields = %v", fields)
	}

	bare := EventToPoint(CommonEvent{EventType: TypeRefill, Fields: map[string]interface{}{"duration_ms": 1500 * time.Millisecond, "pots": 3}})
	if bare.Time().IsZero() {
		t.Fatal("zero timestamp written")
	}
	for _, f := range bare.FieldList() {
		switch f.Key {
		case "duration_ms":
			if f.Value != int64(1500) {
				t.Fatalf("duration field = %v", f.Value)
			}
		case "pots":
			if f.Value != int64(3) {
				t.Fatalf("pots field = %#v", f.Value)
			}
		case "ok":
			if f.Value != true {
				t.Fatal("info event written as failed")
			}
		}
	}
	for _, tg := range bare.TagList() {
		if tg.Key == "phase" || tg.Key == "node" {
			t.Fatalf("empty tag %s written", tg.Key)
		}
	}
}

func TestMultiAndMemory(t *testing.T) {
	a, b := &Memory{}, &Memory{}
	Multi{a, nil, b}.Record(phaseEvent())
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatal("event not fanned out")
	}
}

func TestHealthAndReady(t *testing.T) {
	cases := map[string]struct {
		broker, store bool
		status        string
		code          int
	}{
		"all up":   {true, true, "ok", http.StatusOK},
		"no store": {true, false, "degraded", http.StatusServiceUnavailable},
		"all down": {false, false, "down", http.StatusServiceUnavailable},
	}
	for name, c := range cases {
		rec := httptest.NewRecorder()
		NewHealthHandler(up(c.broker), up(c.store), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var st struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
			t.Fatal(err)
		}
		if st.Status != c.status {
			t.Errorf("%s: status %q, want %q", name, st.Status, c.status)
		}

		rec = httptest.NewRecorder()
		NewReadyHandler(up(c.broker), up(c.store), nil, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rec.Code != c.code {
			t.Errorf("%s: ready code %d, want %d", name, rec.Code, c.code)
		}
	}
}
