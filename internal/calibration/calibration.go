// Package calibration holds the line-sensor calibration of the car. It is
// loaded once at start-up and read-only afterwards.
package calibration

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
)

// Scale is the top of the normalised sensor range.
const Scale = 1000

// Range is the calibrated raw extent of one sensor.
type Range struct {
	Min uint16 `yaml:"min"`
	Max uint16 `yaml:"max"`
}

type Polarity string

const (
	// Above: a sensor is on the line when its normalised value is >= Threshold.
	Above Polarity = "above"
	// Below: on the line when the normalised value is < Threshold.
	Below Polarity = "below"
)

type Calibration struct {
	Sensors   [hw.LineSensors]Range `yaml:"sensors"`
	Threshold uint16               `yaml:"threshold"`
	Polarity  Polarity             `yaml:"polarity"`
}

// Default is an identity calibration over the full 0..Scale range.
func Default() Calibration {
	c := Calibration{Threshold: Scale / 2, Polarity: Above}
	for i := range c.Sensors {
		c.Sensors[i] = Range{Min: 0, Max: Scale}
	}
	return c
}

func Load(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Calibration{}, fmt.Errorf("read calibration: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Calibration{}, fmt.Errorf("parse calibration %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Calibration{}, fmt.Errorf("calibration %s: %w", path, err)
	}
	return c, nil
}

func (c Calibration) Validate() error {
	for i, r := range c.Sensors {
		if r.Max <= r.Min {
			return fmt.Errorf("sensor %d: max %d not above min %d", i, r.Max, r.Min)
		}
	}
	if c.Threshold > Scale {
		return fmt.Errorf("threshold %d above %d", c.Threshold, Scale)
	}
	if c.Polarity != Above && c.Polarity != Below {
		return errors.New("polarity must be above or below")
	}
	return nil
}

// Normalise maps raw sensor i onto 0..Scale, clamping outside the range.
func (c Calibration) Normalise(i int, raw uint16) uint16 {
	r := c.Sensors[i]
	switch {
	case raw <= r.Min:
		return 0
	case raw >= r.Max, r.Max <= r.Min:
		return Scale
	}
	return uint16(uint32(raw-r.Min) * Scale / uint32(r.Max-r.Min))
}

func (c Calibration) dark(v uint16) bool {
	if c.Polarity == Below {
		return v < c.Threshold
	}
	return v >= c.Threshold
}

// Classifier turns a raw sensor array into line readings.
type Classifier struct {
	raw hw.RawLineSensor
	cal Calibration
}

// NewClassifier rejects a calibration that Load would reject.
func NewClassifier(raw hw.RawLineSensor, cal Calibration) (*Classifier, error) {
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}
	return &Classifier{raw: raw, cal: cal}, nil
}

func (c *Classifier) Read() hw.LineReading {
	raw := c.raw.ReadRaw()
	var out hw.LineReading
	for i, v := range raw {
		out[i] = c.cal.dark(c.cal.Normalise(i, v))
	}
	return out
}
