package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

// Configurazione Influx
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string // es. "soil_moisture"
}

// InfluxSink writes one point per tuple, tagged by harvester and pot.
type InfluxSink struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	queryAPI    api.QueryAPI
	bucket      string
	measurement string
	logger      *log.Logger
}

func NewInfluxSink(cfg InfluxConfig, logger *log.Logger) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx config incomplete")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = "soil_moisture"
	}
	if logger == nil {
		logger = log.Default()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI:    client.QueryAPI(cfg.Org),
		bucket:      cfg.Bucket,
		measurement: sanitizeMeasurement(cfg.Measurement),
		logger:      logger,
	}, nil
}

// Point converts r into an Influx point of measurement.
func Point(measurement string, r model.Reading) *write.Point {
	tags := map[string]string{
		"harvester": strconv.Itoa(r.Harvester),
		"pot":       strconv.Itoa(r.Pot),
	}
	if r.CycleID != "" {
		tags["cycle_id"] = r.CycleID
	}
	fields := map[string]interface{}{
		"moisture": int(r.Moisture),
	}
	return influxdb2.NewPoint(measurement, tags, fields, r.Timestamp)
}

func (s *InfluxSink) Write(ctx context.Context, readings []model.Reading) error {
	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		points = append(points, Point(s.measurement, r))
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		s.logger.Printf("persistence: influx write error: %v", err)
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	s.logger.Printf("persistence: wrote %d %s points", len(points), s.measurement)
	return nil
}

// QueryLatest returns the last reading of every pot within the past minutes.
func (s *InfluxSink) QueryLatest(ctx context.Context, minutes int) ([]model.Reading, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and r._field == "moisture")
  |> group(columns: ["harvester", "pot"])
  |> last()`, s.bucket, minutes, s.measurement)

	res, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var out []model.Reading
	for res.Next() {
		rec := res.Record()
		h, _ := strconv.Atoi(fmt.Sprint(rec.ValueByKey("harvester")))
		p, _ := strconv.Atoi(fmt.Sprint(rec.ValueByKey("pot")))
		r := model.Reading{Harvester: h, Pot: p, Timestamp: rec.Time()}
		if id, ok := rec.ValueByKey("cycle_id").(string); ok {
			r.CycleID = id
		}
		if v, ok := rec.Value().(int64); ok {
			r.Moisture = byte(v)
		}
		out = append(out, r)
	}
	return out, res.Err()
}

func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
