package event

import (
	"encoding/json"
	"net/http"
	"time"
)

// Broker is the part of the MQTT client the probes need.
type Broker interface {
	IsConnectionOpen() bool
}

// Store reports whether the event store is configured.
type Store interface {
	Ready() bool
}

// recentWriteError is how long a write error keeps /healthz degraded.
const recentWriteError = 30 * time.Second

type probe struct {
	broker Broker
	store  Store
	writer *Writer
}

func (p probe) brokerUp() bool { return p.broker != nil && p.broker.IsConnectionOpen() }
func (p probe) storeUp() bool  { return p.store != nil && p.store.Ready() }

type healthReport struct {
	Status          string  `json:"status"` // ok | degraded | down
	MQTTConnected   bool    `json:"mqtt_connected"`
	InfluxOK        bool    `json:"influx_ok"`
	LastWriteErrorS float64 `json:"last_write_error_age_sec"`
	WriterStats
}

// NewHealthHandler always answers 200 and reports ok, degraded or down.
func NewHealthHandler(b Broker, s Store, w *Writer) http.Handler {
	p := probe{broker: b, store: s, writer: w}
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		age := p.writer.LastErrorAge()
		rep := healthReport{
			MQTTConnected:   p.brokerUp(),
			InfluxOK:        p.storeUp(),
			LastWriteErrorS: age.Seconds(),
			WriterStats:     p.writer.Stats(),
		}
		switch {
		case rep.MQTTConnected && rep.InfluxOK && age > recentWriteError:
			rep.Status = "ok"
		case rep.MQTTConnected || rep.InfluxOK:
			rep.Status = "degraded"
		default:
			rep.Status = "down"
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(rep)
	})
}

// NewReadyHandler answers 503 until the broker and the store are up and no
// write failed within minOkErrorAge.
func NewReadyHandler(b Broker, s Store, w *Writer, minOkErrorAge time.Duration) http.Handler {
	p := probe{broker: b, store: s, writer: w}
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		ready := p.brokerUp() && p.storeUp() && p.writer.LastErrorAge() > minOkErrorAge
		rw.Header().Set("Content-Type", "application/json")
		if !ready {
			rw.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(rw).Encode(map[string]bool{"ready": ready})
	})
}
