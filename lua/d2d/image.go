package d2d

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrNoImage = errors.New("d2d: bitmap doesn't exist")

// Interpolation selects how images are sampled when scaled.
type Interpolation int

const (
	NearestNeighbor Interpolation = iota
	Linear
)

// LoadImage decodes the image file at path and stores it under id,
// replacing any previous image with that id.
func (c *Context) LoadImage(path, id string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("d2d: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("d2d: decode %s: %w", path, err)
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	c.bitmaps[id] = rgba
	return nil
}

// FreeImage releases the image stored under id. Unknown ids are ignored.
func (c *Context) FreeImage(id string) {
	delete(c.bitmaps, id)
}

// bitmap looks up id in the loaded images first and in the render targets
// second.
func (c *Context) bitmap(id string) (*image.RGBA, bool) {
	if b, ok := c.bitmaps[id]; ok {
		return b, true
	}
	if t, ok := c.targets[id]; ok {
		return t.image(), true
	}
	return nil, false
}

// ImageInfo returns the size of the image or render target id.
func (c *Context) ImageInfo(id string) (width, height int, err error) {
	b, ok := c.bitmap(id)
	if !ok {
		return 0, 0, ErrNoImage
	}
	return b.Rect.Dx(), b.Rect.Dy(), nil
}

// DrawImage scales the src part of image id into dst.
func (c *Context) DrawImage(dst, src Rect, id string, opacity float32, interp Interpolation) error {
	b, ok := c.bitmap(id)
	if !ok {
		return ErrNoImage
	}
	dr := normalize(dst).image()
	sr := normalize(src).image()
	if dr.Empty() || sr.Empty() {
		return nil
	}

	var scaler xdraw.Interpolator = xdraw.NearestNeighbor
	if interp == Linear {
		scaler = xdraw.ApproxBiLinear
	}
	scaled := image.NewRGBA(image.Rect(0, 0, dr.Dx(), dr.Dy()))
	scaler.Scale(scaled, scaled.Rect, b, sr, xdraw.Src, nil)

	var mask image.Image
	if opacity < 1 {
		mask = image.NewUniform(color.Alpha{uint8(max(opacity, 0) * 255)})
	}
	c.top().area.Draw(dr, scaled, image.Point{}, mask, image.Point{}, draw.Over)
	return nil
}
