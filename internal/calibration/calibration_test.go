package calibration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/hw/sim"
)

type rawArray [hw.LineSensors]uint16

func (r rawArray) ReadRaw() [hw.LineSensors]uint16 { return r }

func classifier(t *testing.T, raw hw.RawLineSensor, cal Calibration) *Classifier {
	t.Helper()
	c, err := NewClassifier(raw, cal)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewClassifierRejectsEmptyRange(t *testing.T) {
	cal := Default()
	cal.Sensors[2] = Range{Min: 400, Max: 400}
	if _, err := NewClassifier(rawArray{}, cal); err == nil || !strings.Contains(err.Error(), "sensor 2") {
		t.Fatalf("err = %v", err)
	}
	for _, raw := range []uint16{0, 400, 401, 1000} {
		_ = cal.Normalise(2, raw)
	}
	if got := cal.Normalise(2, 401); got != Scale {
		t.Fatalf("Normalise over an empty range = %d", got)
	}
}

func TestNormalise(t *testing.T) {
	c := Default()
	c.Sensors[0] = Range{Min: 100, Max: 900}
	for raw, want := range map[uint16]uint16{50: 0, 100: 0, 500: 500, 900: 1000, 950: 1000} {
		if got := c.Normalise(0, raw); got != want {
			t.Errorf("Normalise(%d) = %d, want %d", raw, got, want)
		}
	}
}

func TestClassifierPolarity(t *testing.T) {
	raw := rawArray{100, 900, 500, 499, 800}

	above := classifier(t, raw, Default()).Read()
	if want := (hw.LineReading{false, true, true, false, true}); above != want {
		t.Fatalf("above = %v, want %v", above, want)
	}

	cal := Default()
	cal.Polarity = Below
	below := classifier(t, raw, cal).Read()
	if want := (hw.LineReading{true, false, false, true, false}); below != want {
		t.Fatalf("below = %v, want %v", below, want)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qtr.yaml")
	doc := `threshold: 700
polarity: below
sensors:
  - {min: 120, max: 880}
  - {min: 110, max: 900}
  - {min: 100, max: 910}
  - {min: 130, max: 870}
  - {min: 140, max: 860}
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Threshold != 700 || c.Polarity != Below || c.Sensors[4] != (Range{Min: 140, Max: 860}) {
		t.Fatalf("loaded %+v", c)
	}
}

func TestLoadRejectsInvertedRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	doc := "sensors:\n" + strings.Repeat("  - {min: 900, max: 100}\n", hw.LineSensors)
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("inverted range accepted")
	}
}

func TestClassifierRecoversSimulatedLine(t *testing.T) {
	cal := Default()
	for i := range cal.Sensors {
		cal.Sensors[i] = Range{Min: 80, Max: 920}
	}
	line := sim.NewTrack(sim.NearLeft)
	c := classifier(t, sim.Reflectance{Line: line, Dark: 900, Light: 100}, cal)
	if got := c.Read(); got != sim.NearLeft {
		t.Fatalf("read %v, want %v", got, sim.NearLeft)
	}
}
