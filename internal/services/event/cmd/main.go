package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	flag "github.com/spf13/pflag"

	"github.com/LeonardoBeccarini/aquarius/internal/config"
	"github.com/LeonardoBeccarini/aquarius/internal/services/event"
	"github.com/LeonardoBeccarini/aquarius/pkg/dedup"
	"github.com/LeonardoBeccarini/aquarius/pkg/rabbitmq"
)

func main() {
	configPath := flag.StringP("config", "c", "", "rig configuration file")
	addr := flag.String("addr", ":8081", "HTTP listen address")
	batchSize := flag.Uint("batch-size", 10, "influx write batch size")
	flush := flag.Duration("flush-interval", 200*time.Millisecond, "influx flush interval")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("event-svc: %v", err)
	}
	cfg.Broker.ClientID = cfg.ClientID("event-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === InfluxDB ===
	opts := influxdb2.DefaultOptions().
		SetBatchSize(*batchSize).
		SetFlushInterval(uint(flush.Milliseconds()))
	influx := influxdb2.NewClientWithOptions(cfg.Tower.Influx.URL, cfg.Tower.Influx.Token, opts)
	defer influx.Close()
	store := &event.InfluxStore{Client: influx, Org: cfg.Tower.Influx.Org, Bucket: cfg.Tower.Influx.EventsBucket}
	writer := event.NewWriter(influx.WriteAPI(store.Org, store.Bucket))

	// === MQTT ===
	mqttClient, err := rabbitmq.NewRabbitMQConn(&cfg.Broker, ctx)
	if err != nil {
		log.Fatalf("mqtt connection error: %v", err)
	}

	// === HTTP ===
	mux := http.NewServeMux()
	mux.Handle("/healthz", event.NewHealthHandler(mqttClient, store, writer))
	mux.Handle("/readyz", event.NewReadyHandler(mqttClient, store, writer, 2*time.Second))
	mux.Handle("/events/phases/latest", event.NewPhasesLatestHandler(store))

	hs := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("event-svc: HTTP listening on %s", *addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// === Consumer ===
	// QoS 0 redeliveries after a reconnect are dropped by payload hash
	d := dedup.New(10*time.Minute, 20000, nil)
	topic := event.Topic(cfg.Broker.Prefix)
	consumer := rabbitmq.NewConsumer(mqttClient, topic, func(_ string, payload []byte) error {
		hh := sha256.Sum256(payload)
		if !d.ShouldProcess(hex.EncodeToString(hh[:])) {
			return nil
		}
		evt, err := event.Decode(payload)
		if err != nil {
			return err
		}
		writer.Record(evt)
		return nil
	})
	log.Printf("event-svc: subscribing to %s", topic)
	if err := consumer.ConsumeMessage(ctx); err != nil {
		log.Fatalf("subscribe error on %s: %v", topic, err)
	}

	log.Printf("event-svc: shutting down...")
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
	writer.Flush()
}
