package app

import (
	"encoding/json"
	"math"
	"strconv"
)

// ---------- Upstream payloads ----------

// Reading is one pot of /data/latest.
type Reading struct {
	CycleID   string `json:"cycle_id,omitempty"`
	Harvester int    `json:"harvester"`
	Pot       int    `json:"pot"`
	Moisture  int    `json:"moisture"`
	Time      string `json:"time"` // RFC3339
	Dry       bool   `json:"dry"`
}

func (r *Reading) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if v, ok := m["cycle_id"].(string); ok {
		r.CycleID = v
	}
	r.Harvester, _ = number(m["harvester"])
	r.Pot, _ = number(m["pot"])
	// moisture come numero o stringa
	if n, ok := number(m["moisture"]); ok {
		r.Moisture = n
	} else if n, ok := number(m["humidity"]); ok {
		r.Moisture = n
	}
	// time / timestamp
	if t, ok := m["timestamp"].(string); ok && t != "" {
		r.Time = t
	} else if t, ok := m["time"].(string); ok && t != "" {
		r.Time = t
	}
	r.Dry, _ = m["dry"].(bool)
	return nil
}

// PhaseResult is one row of /events/phases/latest.
type PhaseResult struct {
	CycleID  string `json:"cycle_id,omitempty"`
	Phase    string `json:"phase"`
	Node     string `json:"node,omitempty"`
	Severity string `json:"severity"`
	Code     int    `json:"code"`
	Time     string `json:"time"`
}

func (p *PhaseResult) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	p.CycleID, _ = m["cycle_id"].(string)
	p.Phase, _ = m["phase"].(string)
	p.Node, _ = m["node"].(string)
	p.Severity, _ = m["severity"].(string)
	if p.Severity == "" {
		p.Severity = "info"
	}
	p.Code, _ = number(m["code"])
	if t, ok := m["time"].(string); ok && t != "" {
		p.Time = t
	} else if t, ok := m["timestamp"].(string); ok {
		p.Time = t
	}
	return nil
}

// TowerHealth is the tower's /healthz body.
type TowerHealth struct {
	Phase         string `json:"phase"`
	Halted        bool   `json:"halted"`
	LastError     string `json:"last_error,omitempty"`
	CycleID       string `json:"cycle_id"`
	Cycles        int    `json:"cycles"`
	MQTTConnected bool   `json:"mqtt_connected"`
}

func number(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(math.Round(x)), true
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return int(math.Round(f)), true
		}
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ---------- Dashboard ----------

type Stats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Dry  int     `json:"dry"`
}

type DashboardData struct {
	Pots      []Reading         `json:"pots"`
	Phases    []PhaseResult     `json:"phases"`
	Tower     *TowerHealth      `json:"tower,omitempty"`
	Stats     Stats             `json:"stats"`
	Upstreams map[string]string `json:"upstreams"`

	// Stale is set when Phases came from the last good answer.
	Stale bool `json:"stale,omitempty"`
}
