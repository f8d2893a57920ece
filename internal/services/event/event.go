// Package event records the outcome of every control tower phase and
// stores it as a system event in InfluxDB.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/aquarius/pkg/rabbitmq"
)

const (
	TypePhaseResult = "phase.result"
	TypeRefill      = "refill.outcome"
)

type CommonEvent struct {
	EventType     string                 `json:"event_type"`     // phase.result | refill.outcome
	SourceService string                 `json:"source_service"` // tower | car
	CycleID       string                 `json:"cycle_id,omitempty"`
	Phase         string                 `json:"phase,omitempty"`
	Node          string                 `json:"node,omitempty"`
	Severity      string                 `json:"severity"` // info|warning|error
	Fields        map[string]interface{} `json:"fields,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Recorder receives events. Implementations must not block the caller for
// long: they run inside the tower's control loop.
type Recorder interface {
	Record(evt CommonEvent)
}

// Topic is where the tower publishes its events.
func Topic(prefix string) string { return prefix + "/events" }

// Publisher sends events as JSON over MQTT.
type Publisher struct {
	pub    rabbitmq.IPublisher
	logger *log.Logger
}

func NewPublisher(pub rabbitmq.IPublisher, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{pub: pub, logger: logger}
}

func (p *Publisher) Record(evt CommonEvent) {
	data, err := json.Marshal(evt)
	if err == nil {
		err = p.pub.PublishMessage(data)
	}
	if err != nil {
		p.logger.Printf("event: publish %s failed: %v", evt.EventType, err)
	}
}

// Decode parses one published event.
func Decode(payload []byte) (CommonEvent, error) {
	var evt CommonEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return CommonEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if strings.TrimSpace(evt.EventType) == "" {
		return CommonEvent{}, errors.New("decode event: missing event_type")
	}
	if evt.Severity == "" {
		evt.Severity = "info"
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	return evt, nil
}

// Memory keeps events in memory.
type Memory struct {
	mu     sync.Mutex
	events []CommonEvent
}

func (m *Memory) Record(evt CommonEvent) {
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
}

func (m *Memory) Events() []CommonEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CommonEvent(nil), m.events...)
}

// Multi fans an event out to several recorders.
type Multi []Recorder

func (m Multi) Record(evt CommonEvent) {
	for _, r := range m {
		if r != nil {
			r.Record(evt)
		}
	}
}
