package capture

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"strings"

	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/draw"
)

// gifEncoder collects paletted frames and writes the animation on close.
type gifEncoder struct {
	path  string
	delay int // 100ths of a second
	anim  gif.GIF
	audio *wavTrack
}

func newGIFEncoder(path string, fps int, rate uint32, withAudio bool) (*gifEncoder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	f.Close()
	enc := &gifEncoder{path: path, delay: max(1, (100+fps/2)/fps)}
	if withAudio {
		wavPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".wav"
		enc.audio = newWAVTrack(wavPath, rate)
	}
	return enc, nil
}

func (e *gifEncoder) writeFrame(img *image.RGBA) error {
	q := quantize.MedianCutQuantizer{}
	p := q.Quantize(make(color.Palette, 0, 256), img)
	if len(p) == 0 {
		p = color.Palette{color.Black}
	}
	dst := image.NewPaletted(img.Rect, p)
	draw.FloydSteinberg.Draw(dst, dst.Rect, img, img.Rect.Min)
	e.anim.Image = append(e.anim.Image, dst)
	e.anim.Delay = append(e.anim.Delay, e.delay)
	return nil
}

func (e *gifEncoder) writeAudio(samples []int16) error {
	if e.audio != nil {
		e.audio.write(samples)
	}
	return nil
}

func (e *gifEncoder) close() error {
	f, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if len(e.anim.Image) > 0 {
		err = gif.EncodeAll(f, &e.anim)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if e.audio != nil {
		if aerr := e.audio.close(); err == nil {
			err = aerr
		}
	}
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}
