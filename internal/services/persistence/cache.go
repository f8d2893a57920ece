package persistence

import (
	"context"
	"sync"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

// Querier is a sink that can read back the latest readings.
type Querier interface {
	QueryLatest(ctx context.Context, minutes int) ([]model.Reading, error)
}

// Cache wraps a sink and remembers the last batch it accepted.
type Cache struct {
	Sink

	mu     sync.RWMutex
	latest []model.Reading
}

func NewCache(s Sink) *Cache { return &Cache{Sink: s} }

func (c *Cache) Write(ctx context.Context, readings []model.Reading) error {
	if err := c.Sink.Write(ctx, readings); err != nil {
		return err
	}
	c.mu.Lock()
	c.latest = append([]model.Reading(nil), readings...)
	c.mu.Unlock()
	return nil
}

// Latest returns the last accepted batch.
func (c *Cache) Latest() []model.Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Reading(nil), c.latest...)
}

// Querier returns the wrapped sink when it can be queried.
func (c *Cache) Querier() (Querier, bool) {
	q, ok := c.Sink.(Querier)
	return q, ok
}
