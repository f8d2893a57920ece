package indicator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

func TestColorLookup(t *testing.T) {
	cases := []struct {
		sig  Signal
		want Color
	}{
		{Signal{Status: Working, Phase: model.PhaseHarvest}, Yellow},
		{Signal{Status: Working, Phase: model.PhaseRefill}, Blue},
		{Signal{Status: Working, Phase: model.PhasePatrol}, Cyan},
		{Signal{Status: Failure, Phase: model.PhaseRefill, Code: 2}, Red},
		{Signal{Status: Success}, Green},
		{Signal{Status: Degraded}, Cyan},
		{Signal{Status: PhaseStart}, White},
	}
	for _, c := range cases {
		if got := ColorOf(c.sig); got != c.want {
			t.Errorf("%v: got %v, want %v", c.sig, got, c.want)
		}
	}
	if Yellow.Hex() != "#FFFF00" {
		t.Fatalf("hex = %s", Yellow.Hex())
	}
}

func TestConsoleShowsCode(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf).Show(Signal{Status: Failure, Phase: model.PhaseHarvest, Code: 2})
	out := buf.String()
	if !strings.Contains(out, "harvest") || !strings.Contains(out, "code 2") {
		t.Fatalf("output = %q", out)
	}
}

func TestRecorderLast(t *testing.T) {
	var r Recorder
	r.Show(Signal{Status: Failure, Code: 1})
	r.Show(Signal{Status: Success})
	r.Show(Signal{Status: Failure, Code: 3})
	s, ok := r.Last(Failure)
	if !ok || s.Code != 3 {
		t.Fatalf("last failure = %+v %v", s, ok)
	}
	if _, ok := r.Last(Degraded); ok {
		t.Fatal("no degraded signal was shown")
	}
}
