package event

import (
	"log"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Writer stores events through the non-blocking WriteAPI. Write errors
// arrive asynchronously; the last one is kept for the health probes.
type Writer struct {
	api api.WriteAPI

	mu         sync.RWMutex
	lastErr    time.Time
	lastErrMsg string
	written    int64
	failures   map[string]int64 // phase -> failed runs
}

// NewWriter starts draining the error channel of w.
func NewWriter(w api.WriteAPI) *Writer {
	ww := &Writer{
		api:      w,
		lastErr:  time.Now().Add(-24 * time.Hour),
		failures: make(map[string]int64),
	}
	go ww.drain(w.Errors())
	return ww
}

func (w *Writer) drain(errs <-chan error) {
	for err := range errs {
		if err == nil {
			continue
		}
		w.mu.Lock()
		w.lastErr = time.Now()
		w.lastErrMsg = err.Error()
		w.mu.Unlock()
		log.Printf("event: influx write error: %v", err)
	}
}

// Record queues evt and counts failed phases.
func (w *Writer) Record(evt CommonEvent) {
	w.api.WritePoint(EventToPoint(evt))
	w.mu.Lock()
	w.written++
	if evt.EventType == TypePhaseResult && evt.Severity == "error" {
		w.failures[evt.Phase]++
	}
	w.mu.Unlock()
}

func (w *Writer) Flush() { w.api.Flush() }

// LastErrorAge is the time since the last write error. A nil Writer never
// failed.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return time.Since(w.lastErr)
}

// WriterStats is what /healthz reports about the writer.
type WriterStats struct {
	Written        int64            `json:"events_written"`
	PhaseFailures  map[string]int64 `json:"phase_failures,omitempty"`
	LastWriteError string           `json:"last_write_error,omitempty"`
}

func (w *Writer) Stats() WriterStats {
	if w == nil {
		return WriterStats{}
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	st := WriterStats{Written: w.written, LastWriteError: w.lastErrMsg}
	if len(w.failures) > 0 {
		st.PhaseFailures = make(map[string]int64, len(w.failures))
		for k, v := range w.failures {
			st.PhaseFailures[k] = v
		}
	}
	return st
}
