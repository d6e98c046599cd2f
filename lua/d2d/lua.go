package d2d

import (
	"math"

	lua "github.com/yuin/gopher-lua"
)

// Register installs the d2d table in L.
func (c *Context) Register(L *lua.LState) {
	L.SetGlobal("d2d", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"fill_rectangle":          c.luaFillRectangle,
		"draw_rectangle":          c.luaDrawRectangle,
		"fill_ellipse":            c.luaFillEllipse,
		"draw_ellipse":            c.luaDrawEllipse,
		"draw_line":               c.luaDrawLine,
		"draw_text":               c.luaDrawText,
		"get_text_size":           luaGetTextSize,
		"push_clip":               c.luaPushClip,
		"pop_clip":                c.luaPopClip,
		"fill_rounded_rectangle":  c.luaFillRoundedRectangle,
		"draw_rounded_rectangle":  c.luaDrawRoundedRectangle,
		"load_image":              c.luaLoadImage,
		"free_image":              c.luaFreeImage,
		"draw_image":              c.luaDrawImage,
		"get_image_info":          c.luaGetImageInfo,
		"set_text_antialias_mode": c.luaSetTextAntialiasMode,
		"set_antialias_mode":      c.luaSetAntialiasMode,
		"create_render_target":    c.luaCreateRenderTarget,
		"destroy_render_target":   c.luaDestroyRenderTarget,
		"begin_render_target":     c.luaBeginRenderTarget,
		"end_render_target":       c.luaEndRenderTarget,
	}))
}

func number(L *lua.LState, idx int) float32 {
	return float32(L.CheckNumber(idx))
}

func rectArg(L *lua.LState, idx int) Rect {
	return Rect{
		Left:   number(L, idx),
		Top:    number(L, idx+1),
		Right:  number(L, idx+2),
		Bottom: number(L, idx+3),
	}
}

func colorArg(L *lua.LState, idx int) Color {
	var ch [4]float32
	for i := range ch {
		ch[i] = number(L, idx+i)
		if !(ch[i] >= 0 && ch[i] <= 1) {
			L.ArgError(idx+i, "color channel out of range [0, 1]")
		}
	}
	return Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}
}

func pointArg(L *lua.LState, idx int) Point {
	return Point{X: number(L, idx), Y: number(L, idx+1)}
}

func ellipseArg(L *lua.LState, idx int) Ellipse {
	return Ellipse{
		Center:  pointArg(L, idx),
		RadiusX: number(L, idx+2),
		RadiusY: number(L, idx+3),
	}
}

func roundedRectArg(L *lua.LState, idx int) RoundedRect {
	return RoundedRect{
		Rect:    rectArg(L, idx),
		RadiusX: number(L, idx+4),
		RadiusY: number(L, idx+5),
	}
}

func (c *Context) luaFillRectangle(L *lua.LState) int {
	c.FillRectangle(rectArg(L, 1), colorArg(L, 5))
	return 0
}

func (c *Context) luaDrawRectangle(L *lua.LState) int {
	c.DrawRectangle(rectArg(L, 1), colorArg(L, 5), number(L, 9))
	return 0
}

func (c *Context) luaFillEllipse(L *lua.LState) int {
	c.FillEllipse(ellipseArg(L, 1), colorArg(L, 5))
	return 0
}

func (c *Context) luaDrawEllipse(L *lua.LState) int {
	c.DrawEllipse(ellipseArg(L, 1), colorArg(L, 5), number(L, 9))
	return 0
}

func (c *Context) luaDrawLine(L *lua.LState) int {
	c.DrawLine(pointArg(L, 1), pointArg(L, 3), colorArg(L, 5), number(L, 9))
	return 0
}

func (c *Context) luaFillRoundedRectangle(L *lua.LState) int {
	c.FillRoundedRectangle(roundedRectArg(L, 1), colorArg(L, 7))
	return 0
}

func (c *Context) luaDrawRoundedRectangle(L *lua.LState) int {
	c.DrawRoundedRectangle(roundedRectArg(L, 1), colorArg(L, 7), number(L, 11))
	return 0
}

func (c *Context) luaDrawText(L *lua.LState) int {
	r := rectArg(L, 1)
	col := colorArg(L, 5)
	text := L.CheckString(9)
	f := TextFormat{
		Family: L.CheckString(10),
		Size:   number(L, 11),
		Weight: int(L.CheckNumber(12)),
		Style:  L.CheckInt(13),
		HAlign: HAlign(L.CheckInt(14)),
		VAlign: VAlign(L.CheckInt(15)),
	}
	opts := TextOptions(L.CheckInt(16))

	// Whole pixel origins keep glyphs from being smeared across pixels.
	r.Left = float32(math.Trunc(float64(r.Left)))
	r.Top = float32(math.Trunc(float64(r.Top)))
	if err := c.DrawText(r, col, text, f, opts); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

func luaGetTextSize(L *lua.LState) int {
	text := L.CheckString(1)
	f := TextFormat{Family: L.CheckString(2), Size: number(L, 3)}
	w, h, err := TextSize(text, f, number(L, 4), number(L, 5))
	if err != nil {
		L.RaiseError("%v", err)
	}
	t := L.NewTable()
	t.RawSetString("width", lua.LNumber(w))
	t.RawSetString("height", lua.LNumber(h))
	L.Push(t)
	return 1
}

func (c *Context) luaPushClip(L *lua.LState) int {
	c.PushClip(rectArg(L, 1))
	return 0
}

func (c *Context) luaPopClip(L *lua.LState) int {
	c.PopClip()
	return 0
}

func (c *Context) luaSetTextAntialiasMode(L *lua.LState) int {
	c.SetTextAntialiasMode(TextAntialiasMode(L.CheckInt(1)))
	return 0
}

func (c *Context) luaSetAntialiasMode(L *lua.LState) int {
	c.SetAntialiasMode(AntialiasMode(L.CheckInt(1)))
	return 0
}

func (c *Context) luaLoadImage(L *lua.LState) int {
	if err := c.LoadImage(L.CheckString(1), L.CheckString(2)); err != nil {
		c.logger.Print("[Lua] ", err)
	}
	return 0
}

func (c *Context) luaFreeImage(L *lua.LState) int {
	c.FreeImage(L.CheckString(1))
	return 0
}

func (c *Context) luaDrawImage(L *lua.LState) int {
	dst := rectArg(L, 1)
	src := rectArg(L, 5)
	id := L.CheckString(9)
	opacity := number(L, 10)
	interp := Interpolation(L.CheckInt(11))
	if err := c.DrawImage(dst, src, id, opacity, interp); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

func (c *Context) luaGetImageInfo(L *lua.LState) int {
	w, h, err := c.ImageInfo(L.CheckString(1))
	if err != nil {
		L.RaiseError("%v", err)
	}
	t := L.NewTable()
	t.RawSetString("width", lua.LNumber(w))
	t.RawSetString("height", lua.LNumber(h))
	L.Push(t)
	return 1
}

func (c *Context) luaCreateRenderTarget(L *lua.LState) int {
	key := c.CreateRenderTarget(int(L.CheckNumber(1)), int(L.CheckNumber(2)))
	L.Push(lua.LString(key))
	return 1
}

func (c *Context) luaDestroyRenderTarget(L *lua.LState) int {
	c.DestroyRenderTarget(L.CheckString(1))
	return 0
}

func (c *Context) luaBeginRenderTarget(L *lua.LState) int {
	c.BeginRenderTarget(L.CheckString(1))
	return 0
}

func (c *Context) luaEndRenderTarget(L *lua.LState) int {
	c.EndRenderTarget(L.CheckString(1))
	return 0
}
