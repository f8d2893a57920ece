package event

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// PhaseResult is one phase outcome as served to operators.
type PhaseResult struct {
	CycleID  string `json:"cycle_id,omitempty"`
	Phase    string `json:"phase"`
	Node     string `json:"node,omitempty"`
	Severity string `json:"severity"`
	Code     int64  `json:"code"`
	Time     string `json:"time"` // RFC3339
}

// InfluxStore is the event bucket of one organisation.
type InfluxStore struct {
	Client influxdb2.Client
	Org    string
	Bucket string
}

func (s *InfluxStore) Ready() bool { return s != nil && s.Client != nil }

type queryParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseQuery(r *http.Request, defMin, defLim, defTOms int) queryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return queryParams{
		Minutes:   get("minutes", defMin, 1, 7*24*60),
		Limit:     get("limit", defLim, 1, 500),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
}

func buildPhaseFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == "system_event" and r.event_type == %q)
  |> filter(fn: (r) => r._field == "code")
  |> group()
  |> keep(columns: ["_time","_value","phase","node","severity","cycle_id"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, TypePhaseResult, limit)
}

func tag(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// QueryPhases returns the most recent phase results, newest first.
func (s *InfluxStore) QueryPhases(ctx context.Context, minutes, limit int) ([]PhaseResult, error) {
	res, err := s.Client.QueryAPI(s.Org).Query(ctx, buildPhaseFlux(s.Bucket, minutes, limit))
	if err != nil {
		return nil, err
	}
	defer res.Close()

	out := make([]PhaseResult, 0, limit)
	for res.Next() {
		rec := res.Record()
		var code int64
		switch v := rec.Value().(type) {
		case int64:
			code = v
		case float64:
			code = int64(v)
		}
		out = append(out, PhaseResult{
			CycleID:  tag(rec.ValueByKey("cycle_id")),
			Phase:    tag(rec.ValueByKey("phase")),
			Node:     tag(rec.ValueByKey("node")),
			Severity: tag(rec.ValueByKey("severity")),
			Code:     code,
			Time:     rec.Time().UTC().Format(time.RFC3339),
		})
	}
	return out, res.Err()
}

// GET /events/phases/latest?limit=20[&minutes=1440]
func NewPhasesLatestHandler(s *InfluxStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseQuery(r, 1440, 20, 2000)
		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		out, err := s.QueryPhases(ctx, p.Minutes, p.Limit)
		if err != nil {
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]"))
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}
