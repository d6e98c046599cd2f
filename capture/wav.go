package capture

import (
	"fmt"
	"os"

	"github.com/youpy/go-wav"
)

// wavTrack buffers stereo samples and writes them as a 16 bit WAV file on
// close, since the header needs the sample count.
type wavTrack struct {
	path    string
	rate    uint32
	samples []wav.Sample
}

func newWAVTrack(path string, rate uint32) *wavTrack {
	return &wavTrack{path: path, rate: rate}
}

func (t *wavTrack) write(samples []int16) {
	for i := 0; i+1 < len(samples); i += 2 {
		s := wav.Sample{}
		s.Values[0] = int(samples[i])
		s.Values[1] = int(samples[i+1])
		t.samples = append(t.samples, s)
	}
}

func (t *wavTrack) close() (rerr error) {
	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("capture: %w", err)
		}
	}()
	enc := wav.NewWriter(f, uint32(len(t.samples)), 2, t.rate, 16)
	if enc == nil {
		return fmt.Errorf("capture: bad parameters for wav encoding")
	}
	if err := enc.WriteSamples(t.samples); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}
