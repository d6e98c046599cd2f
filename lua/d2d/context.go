// Package d2d is an immediate mode 2D drawing layer for Lua scripts.
//
// Drawing happens on a stack of render targets. The bottom target is the
// overlay passed to NewContext, further targets are created by scripts and
// identified by generated keys. Solid color brushes are cached per color and
// dropped whenever the active target changes.
package d2d

import (
	"fmt"
	"image"
	"image/color"
	"log"

	"github.com/clktmr/mupen64/debug"
)

// Rect is an axis aligned rectangle in overlay pixels. Right and Bottom are
// exclusive.
type Rect struct {
	Left, Top, Right, Bottom float32
}

func (r Rect) image() image.Rectangle {
	return image.Rect(round(r.Left), round(r.Top), round(r.Right), round(r.Bottom))
}

func (r Rect) Width() float32  { return r.Right - r.Left }
func (r Rect) Height() float32 { return r.Bottom - r.Top }

// Point is a position in overlay pixels.
type Point struct {
	X, Y float32
}

// Ellipse is given by its center and the radii along both axes.
type Ellipse struct {
	Center           Point
	RadiusX, RadiusY float32
}

// RoundedRect is a rectangle whose corners are quarter ellipses.
type RoundedRect struct {
	Rect
	RadiusX, RadiusY float32
}

// Color has straight alpha, all channels are in [0, 1].
type Color struct {
	R, G, B, A float32
}

// GetHash packs the color quantized to 8 bit per channel into an integer,
// red in the most significant byte.
func GetHash(c Color) uint32 {
	debug.AssertRange(float64(c.R), 0, 1, "red")
	debug.AssertRange(float64(c.G), 0, 1, "green")
	debug.AssertRange(float64(c.B), 0, 1, "blue")
	debug.AssertRange(float64(c.A), 0, 1, "alpha")
	r := uint32(c.R * 255)
	g := uint32(c.G * 255)
	b := uint32(c.B * 255)
	a := uint32(c.A * 255)
	return r<<24 | g<<16 | b<<8 | a
}

// AntialiasMode selects how shape edges are rasterized.
type AntialiasMode int

const (
	PerPrimitive AntialiasMode = iota
	Aliased
)

// TextAntialiasMode selects how glyphs are rasterized.
type TextAntialiasMode int

const (
	TextDefault TextAntialiasMode = iota
	TextClearType
	TextGrayscale
	TextAliased
)

// Context is the drawing state of a single script.
type Context struct {
	logger *log.Logger

	stack   []*target
	targets map[string]*target
	bitmaps map[string]*image.RGBA
	brushes map[uint32]*image.Uniform
	seq     int

	antialias     AntialiasMode
	textAntialias TextAntialiasMode
}

// NewContext returns a context drawing on dst.
func NewContext(dst *image.RGBA, logger *log.Logger) *Context {
	if logger == nil {
		logger = log.Default()
	}
	return &Context{
		logger:  logger,
		stack:   []*target{newTarget(dst)},
		targets: make(map[string]*target),
		bitmaps: make(map[string]*image.RGBA),
		brushes: make(map[uint32]*image.Uniform),
	}
}

func (c *Context) top() *target {
	return c.stack[len(c.stack)-1]
}

// brush returns the cached brush for col.
func (c *Context) brush(col Color) *image.Uniform {
	key := GetHash(col)
	b, ok := c.brushes[key]
	if !ok {
		b = image.NewUniform(color.NRGBA{
			R: uint8(key >> 24), G: uint8(key >> 16), B: uint8(key >> 8), A: uint8(key),
		})
		c.brushes[key] = b
	}
	return b
}

// SetAntialiasMode applies to all shapes drawn afterwards.
func (c *Context) SetAntialiasMode(mode AntialiasMode) {
	c.antialias = mode
}

// SetTextAntialiasMode applies to all text drawn afterwards.
func (c *Context) SetTextAntialiasMode(mode TextAntialiasMode) {
	c.textAntialias = mode
}

// PushClip restricts drawing on the active target to r.
func (c *Context) PushClip(r Rect) {
	c.top().surf.pushClip(r.image())
}

// PopClip removes the clip pushed last. It does nothing if no clip is set.
func (c *Context) PopClip() {
	c.top().surf.popClip()
}

// CreateRenderTarget returns the key of a new transparent target.
func (c *Context) CreateRenderTarget(width, height int) string {
	c.seq++
	key := fmt.Sprintf("rt_%d", c.seq)
	c.targets[key] = newTarget(image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0))))
	return key
}

// DestroyRenderTarget releases the target. Unknown keys are ignored.
func (c *Context) DestroyRenderTarget(key string) {
	t, ok := c.targets[key]
	if !ok {
		return
	}
	delete(c.targets, key)
	for i := len(c.stack) - 1; i > 0; i-- {
		if c.stack[i] == t {
			c.stack = append(c.stack[:i], c.stack[i+1:]...)
			clear(c.brushes)
		}
	}
}

// BeginRenderTarget makes the target the active one. Unknown keys are
// ignored.
func (c *Context) BeginRenderTarget(key string) {
	t, ok := c.targets[key]
	if !ok {
		return
	}
	c.stack = append(c.stack, t)
	clear(c.brushes)
}

// EndRenderTarget returns to the previous target. Unknown keys are ignored.
func (c *Context) EndRenderTarget(key string) {
	if _, ok := c.targets[key]; !ok || len(c.stack) == 1 {
		return
	}
	c.stack = c.stack[:len(c.stack)-1]
	clear(c.brushes)
}

// Reset drops all resources and clears the clip stack of the overlay.
func (c *Context) Reset() {
	c.stack = c.stack[:1]
	c.stack[0].surf.clip = nil
	clear(c.targets)
	clear(c.bitmaps)
	clear(c.brushes)
}

func round(f float32) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}
