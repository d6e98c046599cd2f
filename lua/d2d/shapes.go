package d2d

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// Control point distance for approximating a quarter ellipse with a cubic
// bezier.
const kappa = 0.5522847498

// pen adds a path to a rasterizer covering only a part of the target,
// offsetting all coordinates by the origin of that part.
type pen struct {
	z      *vector.Rasterizer
	ox, oy float32
}

func (p pen) moveTo(x, y float32) { p.z.MoveTo(x-p.ox, y-p.oy) }
func (p pen) lineTo(x, y float32) { p.z.LineTo(x-p.ox, y-p.oy) }
func (p pen) close()              { p.z.ClosePath() }

func (p pen) cubeTo(bx, by, cx, cy, dx, dy float32) {
	p.z.CubeTo(bx-p.ox, by-p.oy, cx-p.ox, cy-p.oy, dx-p.ox, dy-p.oy)
}

// roundedRect adds a closed rounded rectangle. Reversed paths subtract from
// paths in forward direction.
func (p pen) roundedRect(r Rect, rx, ry float32, reverse bool) {
	rx = min(max(rx, 0), r.Width()/2)
	ry = min(max(ry, 0), r.Height()/2)
	if rx == 0 || ry == 0 {
		rx, ry = 0, 0
	}
	l, t, rr, b := r.Left, r.Top, r.Right, r.Bottom
	kx, ky := rx*kappa, ry*kappa

	if !reverse {
		p.moveTo(l+rx, t)
		p.lineTo(rr-rx, t)
		if rx > 0 {
			p.cubeTo(rr-rx+kx, t, rr, t+ry-ky, rr, t+ry)
		}
		p.lineTo(rr, b-ry)
		if rx > 0 {
			p.cubeTo(rr, b-ry+ky, rr-rx+kx, b, rr-rx, b)
		}
		p.lineTo(l+rx, b)
		if rx > 0 {
			p.cubeTo(l+rx-kx, b, l, b-ry+ky, l, b-ry)
		}
		p.lineTo(l, t+ry)
		if rx > 0 {
			p.cubeTo(l, t+ry-ky, l+rx-kx, t, l+rx, t)
		}
	} else {
		p.moveTo(l+rx, t)
		if rx > 0 {
			p.cubeTo(l+rx-kx, t, l, t+ry-ky, l, t+ry)
		}
		p.lineTo(l, b-ry)
		if rx > 0 {
			p.cubeTo(l, b-ry+ky, l+rx-kx, b, l+rx, b)
		}
		p.lineTo(rr-rx, b)
		if rx > 0 {
			p.cubeTo(rr-rx+kx, b, rr, b-ry+ky, rr, b-ry)
		}
		p.lineTo(rr, t+ry)
		if rx > 0 {
			p.cubeTo(rr, t+ry-ky, rr-rx+kx, t, rr-rx, t)
		}
	}
	p.close()
}

func (p pen) ellipse(e Ellipse, reverse bool) {
	r := Rect{
		Left: e.Center.X - e.RadiusX, Top: e.Center.Y - e.RadiusY,
		Right: e.Center.X + e.RadiusX, Bottom: e.Center.Y + e.RadiusY,
	}
	p.roundedRect(r, e.RadiusX, e.RadiusY, reverse)
}

// fill rasterizes the path built by fn within bb and composites col onto the
// active target.
func (c *Context) fill(bb image.Rectangle, col Color, fn func(p pen)) {
	t := c.top()
	bb = bb.Intersect(t.surf.bounds())
	if bb.Empty() {
		return
	}
	z := vector.NewRasterizer(bb.Dx(), bb.Dy())
	fn(pen{z: z, ox: float32(bb.Min.X), oy: float32(bb.Min.Y)})
	mask := image.NewAlpha(image.Rect(0, 0, bb.Dx(), bb.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	if c.antialias == Aliased {
		threshold(mask)
	}
	t.area.Draw(bb, c.brush(col), image.Point{}, mask, image.Point{}, draw.Over)
}

// threshold removes partial coverage from mask.
func threshold(mask *image.Alpha) {
	for i, a := range mask.Pix {
		if a >= 0x80 {
			mask.Pix[i] = 0xff
		} else {
			mask.Pix[i] = 0
		}
	}
}

func boundsOf(r Rect, pad float32) image.Rectangle {
	return image.Rect(
		int(math.Floor(float64(min(r.Left, r.Right)-pad))),
		int(math.Floor(float64(min(r.Top, r.Bottom)-pad))),
		int(math.Ceil(float64(max(r.Left, r.Right)+pad))),
		int(math.Ceil(float64(max(r.Top, r.Bottom)+pad))),
	)
}

func normalize(r Rect) Rect {
	return Rect{
		Left: min(r.Left, r.Right), Top: min(r.Top, r.Bottom),
		Right: max(r.Left, r.Right), Bottom: max(r.Top, r.Bottom),
	}
}

// FillRectangle fills r with col.
func (c *Context) FillRectangle(r Rect, col Color) {
	r = normalize(r)
	if c.antialias == Aliased {
		t := c.top()
		t.area.SetColor(c.brush(col).C)
		t.area.Fill(r.image())
		return
	}
	c.fill(boundsOf(r, 0), col, func(p pen) {
		p.roundedRect(r, 0, 0, false)
	})
}

// DrawRectangle strokes the outline of r, centered on its edges.
func (c *Context) DrawRectangle(r Rect, col Color, thickness float32) {
	c.DrawRoundedRectangle(RoundedRect{Rect: r}, col, thickness)
}

// FillRoundedRectangle fills rr with col.
func (c *Context) FillRoundedRectangle(rr RoundedRect, col Color) {
	r := normalize(rr.Rect)
	c.fill(boundsOf(r, 0), col, func(p pen) {
		p.roundedRect(r, rr.RadiusX, rr.RadiusY, false)
	})
}

// DrawRoundedRectangle strokes the outline of rr, centered on its edge.
func (c *Context) DrawRoundedRectangle(rr RoundedRect, col Color, thickness float32) {
	r := normalize(rr.Rect)
	h := max(thickness, 0) / 2
	outer := Rect{r.Left - h, r.Top - h, r.Right + h, r.Bottom + h}
	inner := Rect{r.Left + h, r.Top + h, r.Right - h, r.Bottom - h}
	orx, ory := rr.RadiusX, rr.RadiusY
	if orx > 0 && ory > 0 {
		orx, ory = orx+h, ory+h
	}
	c.fill(boundsOf(outer, 0), col, func(p pen) {
		p.roundedRect(outer, orx, ory, false)
		if inner.Width() > 0 && inner.Height() > 0 {
			p.roundedRect(inner, max(rr.RadiusX-h, 0), max(rr.RadiusY-h, 0), true)
		}
	})
}

// FillEllipse fills e with col.
func (c *Context) FillEllipse(e Ellipse, col Color) {
	e.RadiusX, e.RadiusY = abs(e.RadiusX), abs(e.RadiusY)
	bb := Rect{e.Center.X - e.RadiusX, e.Center.Y - e.RadiusY, e.Center.X + e.RadiusX, e.Center.Y + e.RadiusY}
	c.fill(boundsOf(bb, 0), col, func(p pen) {
		p.ellipse(e, false)
	})
}

// DrawEllipse strokes the outline of e, centered on its edge.
func (c *Context) DrawEllipse(e Ellipse, col Color, thickness float32) {
	e.RadiusX, e.RadiusY = abs(e.RadiusX), abs(e.RadiusY)
	h := max(thickness, 0) / 2
	outer := Ellipse{e.Center, e.RadiusX + h, e.RadiusY + h}
	inner := Ellipse{e.Center, e.RadiusX - h, e.RadiusY - h}
	bb := Rect{outer.Center.X - outer.RadiusX, outer.Center.Y - outer.RadiusY,
		outer.Center.X + outer.RadiusX, outer.Center.Y + outer.RadiusY}
	c.fill(boundsOf(bb, 0), col, func(p pen) {
		p.ellipse(outer, false)
		if inner.RadiusX > 0 && inner.RadiusY > 0 {
			p.ellipse(inner, true)
		}
	})
}

// DrawLine strokes the segment from a to b with flat caps.
func (c *Context) DrawLine(a, b Point, col Color, thickness float32) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 || thickness <= 0 {
		return
	}
	nx, ny := -dy/l*thickness/2, dx/l*thickness/2
	bb := Rect{min(a.X, b.X), min(a.Y, b.Y), max(a.X, b.X), max(a.Y, b.Y)}
	c.fill(boundsOf(bb, thickness/2), col, func(p pen) {
		p.moveTo(a.X+nx, a.Y+ny)
		p.lineTo(b.X+nx, b.Y+ny)
		p.lineTo(b.X-nx, b.Y-ny)
		p.lineTo(a.X-nx, a.Y-ny)
		p.close()
	})
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
