package d2d

import (
	"image"
	"image/draw"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// HAlign is the horizontal alignment of text in its layout rectangle.
type HAlign int

const (
	AlignLeading HAlign = iota
	AlignTrailing
	AlignCenter
	AlignJustified
)

// VAlign is the vertical alignment of text in its layout rectangle.
type VAlign int

const (
	AlignNear VAlign = iota
	AlignFar
	AlignMiddle
)

// TextOptions are flags that change how text is laid out.
type TextOptions int

const (
	TextNoSnap TextOptions = 1 << iota
	TextClip
)

// Weights of at least FontWeightSemiBold select the bold face.
const FontWeightSemiBold = 600

// TextFormat selects the font and alignment of drawn text.
type TextFormat struct {
	Family string
	Size   float32
	Weight int
	Style  int // 0 normal, 1 oblique, 2 italic
	HAlign HAlign
	VAlign VAlign
}

var fonts struct {
	sync.Mutex
	parsed map[string]*opentype.Font
}

var fontData = map[string][]byte{
	"regular":        goregular.TTF,
	"bold":           gobold.TTF,
	"italic":         goitalic.TTF,
	"bolditalic":     gobolditalic.TTF,
	"mono":           gomono.TTF,
	"monobold":       gomonobold.TTF,
	"monoitalic":     gomonoitalic.TTF,
	"monobolditalic": gomonobolditalic.TTF,
}

func isMonospace(family string) bool {
	family = strings.ToLower(family)
	for _, s := range []string{"mono", "courier", "consolas", "console", "fixed"} {
		if strings.Contains(family, s) {
			return true
		}
	}
	return false
}

// face returns a new face for the format. Faces are not cached, only the
// parsed font files are.
func face(f TextFormat) (font.Face, error) {
	var name string
	if isMonospace(f.Family) {
		name = "mono"
	}
	if f.Weight >= FontWeightSemiBold {
		name += "bold"
	}
	if f.Style != 0 {
		name += "italic"
	}
	if name == "" {
		name = "regular"
	}

	fonts.Lock()
	defer fonts.Unlock()
	if fonts.parsed == nil {
		fonts.parsed = make(map[string]*opentype.Font)
	}
	fnt, ok := fonts.parsed[name]
	if !ok {
		var err error
		fnt, err = opentype.Parse(fontData[name])
		if err != nil {
			return nil, err
		}
		fonts.parsed[name] = fnt
	}
	return opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    float64(max(f.Size, 1)),
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

type line struct {
	text  string
	width fixed.Int26_6
}

// layout breaks text into lines at newlines and, if maxWidth is positive,
// between words. Words wider than maxWidth get a line of their own.
func layout(face font.Face, text string, maxWidth fixed.Int26_6) []line {
	var lines []line
	for _, para := range strings.Split(text, "\n") {
		if maxWidth <= 0 {
			lines = append(lines, line{para, font.MeasureString(face, para)})
			continue
		}
		cur := ""
		for _, word := range strings.Split(para, " ") {
			next := word
			if cur != "" {
				next = cur + " " + word
			}
			if cur != "" && font.MeasureString(face, next) > maxWidth {
				lines = append(lines, line{cur, font.MeasureString(face, cur)})
				next = word
			}
			cur = next
		}
		lines = append(lines, line{cur, font.MeasureString(face, cur)})
	}
	return lines
}

func toFixed(f float32) fixed.Int26_6 {
	return fixed.Int26_6(f * 64)
}

// DrawText lays out text within r and draws it with col.
func (c *Context) DrawText(r Rect, col Color, text string, f TextFormat, opts TextOptions) error {
	fc, err := face(f)
	if err != nil {
		return err
	}
	defer fc.Close()

	r = normalize(r)
	lines := layout(fc, text, toFixed(r.Width()))
	m := fc.Metrics()
	total := m.Height * fixed.Int26_6(len(lines))

	y := toFixed(r.Top)
	switch f.VAlign {
	case AlignFar:
		y = toFixed(r.Bottom) - total
	case AlignMiddle:
		y = toFixed(r.Top) + (toFixed(r.Height())-total)/2
	}

	t := c.top()
	if opts&TextClip != 0 {
		t.surf.pushClip(r.image())
		defer t.surf.popClip()
	}
	brush := c.brush(col)
	for _, l := range lines {
		x := toFixed(r.Left)
		switch f.HAlign {
		case AlignTrailing:
			x = toFixed(r.Right) - l.width
		case AlignCenter:
			x = toFixed(r.Left) + (toFixed(r.Width())-l.width)/2
		}
		dot := fixed.Point26_6{X: x, Y: y + m.Ascent}
		prev := rune(-1)
		for _, ch := range l.text {
			if prev >= 0 {
				dot.X += fc.Kern(prev, ch)
			}
			dr, mask, mp, adv, ok := fc.Glyph(dot, ch)
			if ok && !dr.Empty() {
				if c.textAntialias == TextAliased {
					a := image.NewAlpha(image.Rect(0, 0, dr.Dx(), dr.Dy()))
					draw.Draw(a, a.Rect, mask, mp, draw.Src)
					threshold(a)
					mask, mp = a, image.Point{}
				}
				t.area.Draw(dr, brush, image.Point{}, mask, mp, draw.Over)
			}
			dot.X += adv
			prev = ch
		}
		y += m.Height
	}
	return nil
}

// TextSize returns the extent of text laid out in a box of the given size.
// The width includes trailing whitespace.
func TextSize(text string, f TextFormat, maxWidth, maxHeight float32) (width, height int, err error) {
	fc, err := face(f)
	if err != nil {
		return 0, 0, err
	}
	defer fc.Close()

	lines := layout(fc, text, toFixed(maxWidth))
	var w fixed.Int26_6
	for _, l := range lines {
		w = max(w, l.width)
	}
	h := fc.Metrics().Height * fixed.Int26_6(len(lines))
	return w.Floor(), h.Floor(), nil
}
