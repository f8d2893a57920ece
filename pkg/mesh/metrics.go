package mesh

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts channel operations by outcome ("ok", "timeout", "cancelled").
type Metrics struct {
	Sends    *prometheus.CounterVec
	Receives *prometheus.CounterVec
}

// NewMetrics registers the mesh counters on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_send_total",
			Help: "Bounded send attempts by outcome.",
		}, []string{"node", "outcome"}),
		Receives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_receive_total",
			Help: "Bounded receive attempts by outcome.",
		}, []string{"node", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Sends, m.Receives)
	}
	return m
}

func (m *Metrics) send(node, outcome string) {
	if m != nil {
		m.Sends.WithLabelValues(node, outcome).Inc()
	}
}

func (m *Metrics) receive(node, outcome string) {
	if m != nil {
		m.Receives.WithLabelValues(node, outcome).Inc()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case err == ErrTimeout:
		return "timeout"
	}
	return "cancelled"
}
