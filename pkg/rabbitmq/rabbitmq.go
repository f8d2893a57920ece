package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eclipse/paho.mqtt.golang"
)

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	// Prefix is the topic root shared by every node of one rig.
	Prefix string `yaml:"prefix"`
}

// BrokerURL is the tcp:// address paho connects to.
func (c *RabbitMQConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

func NewRabbitMQConn(cfg *RabbitMQConfig, ctx context.Context) (mqtt.Client, error) {
	connAddr := cfg.BrokerURL()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("mqtt: connection lost: %v", err)
	})

	// Exponential backoff per le retry in caso di fail
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	maxRetries := 5

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("mqtt: failed to connect to broker: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	log.Printf("mqtt: connected to broker at %s as %s", connAddr, cfg.ClientID)

	go func() {
		<-ctx.Done()
		CloseRabbitMQConn(client)
	}()

	return client, nil
}

func CloseRabbitMQConn(client mqtt.Client) {
	if client.IsConnected() {
		client.Disconnect(250)
		log.Println("mqtt: connection closed")
	}
}
