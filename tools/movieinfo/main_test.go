package movieinfo

import (
	"bytes"
	"strings"
	"testing"

	"github.com/clktmr/mupen64/movie"
	"github.com/clktmr/mupen64/rcp/serial/joybus"
)

func TestPrint(t *testing.T) {
	m := movie.New(movie.FromStart, 0b101)
	movie.SetString(m.ROMName[:], "SUPER MARIO 64")
	movie.SetString(m.Author[:], "someone")
	m.ROMCountry = 'E'
	m.Inputs = []joybus.Sample{
		joybus.NewSample(joybus.ButtonA, 0, 0),
		joybus.NewSample(joybus.ButtonB, 0, 0),
	}
	var buf bytes.Buffer
	Print(&buf, m, 1)
	out := buf.String()
	for _, s := range []string{"SUPER MARIO 64", "someone", "power-on", "controllers: 1 3", "country E", "samples:     2"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in output:\n%s", s, out)
		}
	}
	if strings.Count(out, "\n") != 12 {
		t.Fatalf("expected one sample line, got:\n%s", out)
	}
}
