package event

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const measurement = "system_event"

// EventToPoint maps evt to one system_event point. Cycle, phase and node
// become tags so Flux can group on them; Fields stay fields.
func EventToPoint(evt CommonEvent) *write.Point {
	severity := evt.Severity
	if severity == "" {
		severity = "info"
	}
	tags := map[string]string{
		"event_type":     evt.EventType,
		"source_service": evt.SourceService,
		"severity":       severity,
	}
	setTag(tags, "cycle_id", evt.CycleID)
	setTag(tags, "phase", evt.Phase)
	setTag(tags, "node", evt.Node)

	fields := make(map[string]interface{}, len(evt.Fields)+2)
	for k, v := range evt.Fields {
		fields[k] = fieldValue(v)
	}
	fields["ok"] = severity != "error"
	// almeno un field
	if _, ok := fields["count"]; !ok {
		fields["count"] = int64(1)
	}

	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(measurement, tags, fields, ts.UTC())
}

func setTag(tags map[string]string, k, v string) {
	if v != "" {
		tags[k] = v
	}
}

// fieldValue widens the integer kinds the tower records so one field keeps
// one Influx type across writers.
func fieldValue(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case time.Duration:
		return x.Milliseconds()
	}
	return v
}
