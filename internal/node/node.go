// Package node bootstraps the mesh channel of one rig node over the MQTT
// broker.
package node

import (
	"context"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeonardoBeccarini/aquarius/internal/config"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
	"github.com/LeonardoBeccarini/aquarius/pkg/mesh"
	"github.com/LeonardoBeccarini/aquarius/pkg/rabbitmq"
)

// ChannelOptions builds the channel options from the shared constants.
func ChannelOptions(cfg *config.Config, c clock.Clock, m *mesh.Metrics) mesh.Options {
	return mesh.Options{
		ReadTimeout:  cfg.Shared.ReadTimeout,
		WriteTimeout: cfg.Shared.WriteTimeout,
		PollInterval: cfg.Shared.PollInterval,
		Clock:        c,
		Metrics:      m,
	}
}

// Node is a connected rig node.
type Node struct {
	Channel *mesh.Channel
	Client  mqtt.Client
	wait    time.Duration
}

// Publisher returns a publisher on topic sharing the node's connection.
func (n *Node) Publisher(topic string) rabbitmq.IPublisher {
	return rabbitmq.NewPublisher(n.Client, topic, n.wait)
}

// Close disconnects from the broker.
func (n *Node) Close() { rabbitmq.CloseRabbitMQConn(n.Client) }

// Connect dials the broker, subscribes self to its node topic and returns
// the node with its channel. The subscription lives until ctx is done.
func Connect(ctx context.Context, cfg *config.Config, self model.NodeAddress, reg prometheus.Registerer, logger *log.Logger) (*Node, error) {
	if logger == nil {
		logger = log.Default()
	}
	broker := cfg.Broker
	broker.ClientID = cfg.ClientID(self.String())

	client, err := rabbitmq.NewRabbitMQConn(&broker, ctx)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", self, err)
	}

	publish := func(topic string) rabbitmq.IPublisher {
		return rabbitmq.NewPublisher(client, topic, cfg.Shared.WriteTimeout)
	}
	netw := mesh.NewMQTTNetwork(self, broker.Prefix, publish, logger)

	consumer := rabbitmq.NewConsumer(client, netw.Topic(), netw.HandleFrame)
	go func() {
		if err := consumer.ConsumeMessage(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("node %s: subscription ended: %v", self, err)
		}
	}()

	logger.Printf("node %s: listening on %s", self, netw.Topic())
	return &Node{
		Channel: mesh.NewChannel(netw, self, ChannelOptions(cfg, clock.Real(), mesh.NewMetrics(reg))),
		Client:  client,
		wait:    cfg.Shared.WriteTimeout,
	}, nil
}
