// Package persistence stores the moisture readings the control tower
// harvests every cycle.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/LeonardoBeccarini/aquarius/internal/config"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

// ErrConnection marks a sink that could not reach its backend. It is the
// only failure of the Persist phase.
var ErrConnection = errors.New("persistence: connection failed")

// Sink accepts the readings of one cycle.
type Sink interface {
	Write(ctx context.Context, readings []model.Reading) error
}

// Open builds the sink selected by the scheme of rawURL:
// http(s)://host/path, influx://, sqlite:///path/to.db or memory://.
func Open(ctx context.Context, rawURL string, influx config.Influx, logger *log.Logger) (Sink, func() error, error) {
	if logger == nil {
		logger = log.Default()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("persist url %q: %w", rawURL, err)
	}
	nop := func() error { return nil }
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPSink(rawURL, HTTPOptions{Logger: logger}), nop, nil
	case "influx":
		s, err := NewInfluxSink(InfluxConfig{
			URL:         influx.URL,
			Token:       influx.Token,
			Org:         influx.Org,
			Bucket:      influx.Bucket,
			Measurement: "soil_moisture",
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite":
		path := u.Path
		if u.Host != "" {
			path = u.Host + path
		}
		if path == "" {
			path = ":memory:"
		}
		s, err := OpenSQLSink(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "memory", "":
		return &MemorySink{}, nop, nil
	}
	return nil, nil, fmt.Errorf("persist url %q: unsupported scheme %q", rawURL, u.Scheme)
}

// MemorySink keeps every batch in memory.
type MemorySink struct {
	mu      sync.Mutex
	batches [][]model.Reading

	// Fail makes every Write fail with ErrConnection.
	Fail bool
}

func (m *MemorySink) Write(_ context.Context, readings []model.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return ErrConnection
	}
	m.batches = append(m.batches, append([]model.Reading(nil), readings...))
	return nil
}

func (m *MemorySink) Batches() [][]model.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]model.Reading(nil), m.batches...)
}
