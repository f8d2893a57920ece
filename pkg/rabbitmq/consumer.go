package rabbitmq

import (
	"context"
	"log"

	"github.com/eclipse/paho.mqtt.golang"
)

// Handler receives the raw payload of one message.
type Handler func(topic string, payload []byte) error

type IConsumer interface {
	ConsumeMessage(ctx context.Context) error
	SetHandler(handler Handler)
}

// Consumer holds the client and topic for subscribing.
type Consumer struct {
	client  mqtt.Client
	handler Handler
	topic   string
	qos     byte
}

func NewConsumer(client mqtt.Client, topic string, handler Handler) *Consumer {
	return &Consumer{client: client, topic: topic, handler: handler}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// ConsumeMessage subscribes to the topic and dispatches to the handler.
// It blocks until the context is cancelled, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) error {
	token := c.client.Subscribe(c.topic, c.qos, func(_ mqtt.Client, message mqtt.Message) {
		if c.handler == nil {
			log.Printf("mqtt: no handler set for topic %s", c.topic)
			return
		}
		if err := c.handler(message.Topic(), message.Payload()); err != nil {
			log.Printf("mqtt: handling message on %s: %v", c.topic, err)
		}
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("mqtt: subscribed to %s", c.topic)

	<-ctx.Done()

	c.client.Unsubscribe(c.topic).Wait()
	return nil
}
