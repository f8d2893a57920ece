package rabbitmq

import (
	"errors"
	"fmt"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
)

// ErrPublishTimeout is returned when the broker did not complete the publish
// within the publisher's wait window.
var ErrPublishTimeout = errors.New("publish not completed in time")

// IPublisher publishes raw frames to one topic.
type IPublisher interface {
	PublishMessage(payload []byte) error
}

// Publisher is bound to a single topic of the shared client.
type Publisher struct {
	client mqtt.Client
	topic  string
	wait   time.Duration
}

// NewPublisher creates a QoS 0 publisher. wait bounds how long PublishMessage
// blocks on the broker; 0 means 250ms.
func NewPublisher(client mqtt.Client, topic string, wait time.Duration) *Publisher {
	if wait <= 0 {
		wait = 250 * time.Millisecond
	}
	return &Publisher{client: client, topic: topic, wait: wait}
}

func (p *Publisher) Topic() string { return p.topic }

// PublishMessage publishes payload at QoS 0. It fails when the client is
// offline or the broker does not complete the publish within the wait window.
func (p *Publisher) PublishMessage(payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("publish %s: client not connected", p.topic)
	}
	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(p.wait) {
		return fmt.Errorf("publish %s: %w", p.topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}
	return nil
}
