package d2d

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/embeddedgo/display/pix"
)

// surface is a pix.Driver drawing into an RGBA image. All drawing is
// restricted to the innermost clip rectangle.
type surface struct {
	img  *image.RGBA
	clip []image.Rectangle
	fill image.Uniform
}

func (s *surface) bounds() image.Rectangle {
	if n := len(s.clip); n > 0 {
		return s.clip[n-1]
	}
	return s.img.Rect
}

func (s *surface) pushClip(r image.Rectangle) {
	s.clip = append(s.clip, r.Intersect(s.bounds()))
}

func (s *surface) popClip() {
	if n := len(s.clip); n > 0 {
		s.clip = s.clip[:n-1]
	}
}

func (s *surface) Draw(r image.Rectangle, src image.Image, sp image.Point,
	mask image.Image, mp image.Point, op draw.Op) {
	clipped := r.Intersect(s.bounds())
	if clipped.Empty() {
		return
	}
	d := clipped.Min.Sub(r.Min)
	draw.DrawMask(s.img, clipped, src, sp.Add(d), mask, mp.Add(d), op)
}

func (s *surface) Fill(r image.Rectangle) {
	s.Draw(r, &s.fill, image.Point{}, nil, image.Point{}, draw.Over)
}

func (s *surface) SetColor(c color.Color) {
	s.fill.C = c
}

func (s *surface) SetDir(dir int) image.Rectangle {
	return s.img.Bounds()
}

func (s *surface) Flush() {}

func (s *surface) Err(clear bool) error {
	return nil
}

// target is a render target: an image with a pix display covering it.
type target struct {
	surf *surface
	area *pix.Area
}

func newTarget(img *image.RGBA) *target {
	s := &surface{img: img}
	disp := pix.NewDisplay(s)
	return &target{surf: s, area: disp.NewArea(disp.Bounds())}
}

func (t *target) image() *image.RGBA {
	return t.surf.img
}
