package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

// NewHTTPMux serves the stored readings.
func NewHTTPMux(c *Cache) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	RegisterRoutes(mux, c)
	return mux
}

// RegisterRoutes adds /data/latest to mux.
func RegisterRoutes(mux *http.ServeMux, c *Cache) {
	// GET /data/latest
	// Query params:
	//   source=auto|store|cache   (default auto: prova lo store, fallback cache)
	//   minutes=<int>             (finestra temporale per lo store, default 1440 = 24h)
	mux.HandleFunc("/data/latest", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		source := strings.ToLower(q.Get("source"))
		if source == "" {
			source = "auto"
		}
		minutes := 60 * 24
		if s := q.Get("minutes"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				minutes = n
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		list, used := c.Latest(), "cache"
		if source == "store" || source == "auto" {
			if store, ok := c.Querier(); ok {
				if got, err := store.QueryLatest(ctx, minutes); err == nil && len(got) > 0 {
					list, used = got, "store"
				}
			}
		}

		type outT struct {
			CycleID   string `json:"cycle_id,omitempty"`
			Harvester int    `json:"harvester"`
			Pot       int    `json:"pot"`
			Moisture  int    `json:"moisture"`
			Timestamp string `json:"timestamp"`
		}
		out := make([]outT, 0, len(list))
		for _, v := range list {
			out = append(out, outT{
				CycleID: v.CycleID, Harvester: v.Harvester, Pot: v.Pot,
				Moisture: int(v.Moisture), Timestamp: v.Timestamp.UTC().Format(time.RFC3339),
			})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Harvester != out[j].Harvester {
				return out[i].Harvester < out[j].Harvester
			}
			return out[i].Pot < out[j].Pot
		})

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Data-Source", used)
		_ = json.NewEncoder(w).Encode(out)
	})
}

// NewIngestHandler accepts the form POSTs of HTTPSink (harvester, pot,
// humidity) and stores each one as a single reading.
func NewIngestHandler(s Sink) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h, errH := strconv.Atoi(r.PostForm.Get("harvester"))
		p, errP := strconv.Atoi(r.PostForm.Get("pot"))
		v, errV := strconv.Atoi(r.PostForm.Get("humidity"))
		if errH != nil || errP != nil || errV != nil || h < 1 || p < 1 || v < 0 || v > 255 {
			http.Error(w, "harvester, pot and humidity must be numbers", http.StatusBadRequest)
			return
		}
		reading := model.Reading{Harvester: h, Pot: p, Moisture: byte(v), Timestamp: time.Now().UTC()}
		if err := s.Write(r.Context(), []model.Reading{reading}); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
