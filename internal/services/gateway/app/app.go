// Package app is the dashboard gateway: it merges the tower's latest
// readings and health with the phase outcomes of the event service.
package app

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

type Config struct {
	TowerBaseURL  string
	EventsBaseURL string
	ReadingsPath  string
	HealthPath    string
	PhasesPath    string
	HTTPTimeout   time.Duration

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	// DryThreshold marks the pots the tower would water.
	DryThreshold byte

	Logger *log.Logger
}

type Gateway struct {
	cfg      Config
	readings *Upstream
	health   *Upstream
	phases   *Upstream
	logger   *log.Logger

	mu             sync.Mutex
	lastGoodPhases []PhaseResult
}

func NewGateway(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.ReadingsPath == "" {
		cfg.ReadingsPath = "/data/latest"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/healthz"
	}
	if cfg.PhasesPath == "" {
		cfg.PhasesPath = "/events/phases/latest"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 3 * time.Second
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 3
	}
	if cfg.DryThreshold == 0 {
		cfg.DryThreshold = model.DefaultMoistureThreshold
	}

	// Un breaker per ciascun upstream
	return &Gateway{
		cfg:      cfg,
		readings: NewUpstream("tower-readings", cfg.TowerBaseURL, cfg.ReadingsPath, cfg.HTTPTimeout, newBreaker("tower-readings", cfg)),
		health:   NewUpstream("tower-health", cfg.TowerBaseURL, cfg.HealthPath, cfg.HTTPTimeout, newBreaker("tower-health", cfg)),
		phases:   NewUpstream("events", cfg.EventsBaseURL, cfg.PhasesPath, cfg.HTTPTimeout, newBreaker("events", cfg)),
		logger:   cfg.Logger,
	}
}

func newBreaker(name string, cfg Config) *gobreaker.CircuitBreaker {
	fails := uint32(cfg.BreakerFailures)
	logger := cfg.Logger
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("gateway: breaker %s %s -> %s", name, from, to)
		},
	})
}

// Handler serves /healthz and /dashboard/data.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/dashboard/data", g.HandleDashboard)
	return mux
}
