package emu

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/clktmr/mupen64/plugin"
)

// overlayVideo composes the script overlay over the frames of a video
// plugin.
type overlayVideo struct {
	plugin.Video
	overlay *image.RGBA
}

func (v *overlayVideo) ReadScreen() *image.RGBA {
	img := v.Video.ReadScreen()
	draw.Draw(img, img.Rect, v.overlay, v.overlay.Rect.Min, draw.Over)
	return img
}
