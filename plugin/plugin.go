// Package plugin defines the video, audio, input and RSP plugins the
// emulator hosts.
package plugin

import (
	"image"

	"github.com/clktmr/mupen64/rcp/serial/joybus"
)

// Plugin is the part common to all plugin types. Config, Test and About are
// the entry points offered in the frontend's plugin settings.
type Plugin interface {
	Name() string
	Config()
	Test()
	About()
}

type Video interface {
	Plugin

	// ReadScreen returns a copy of the last frame.
	ReadScreen() *image.RGBA

	// UpdateScreen is called on every vertical interrupt.
	UpdateScreen()
}

type Audio interface {
	Plugin

	// SetDacrate is called when the game changes the audio sample rate.
	SetDacrate(rate uint32)

	// PlaySamples queues interleaved stereo samples.
	PlaySamples(samples []int16)
}

type Input interface {
	Plugin
	joybus.InputSource
}

type RSP interface {
	Plugin
}

// Set is the collection of loaded plugins.
type Set struct {
	Video Video
	Audio Audio
	Input Input
	RSP   RSP
}

// Names returns the names of all plugins, in the order video, audio, input
// and RSP.
func (s *Set) Names() (video, audio, input, rsp string) {
	name := func(p Plugin) string {
		if p == nil {
			return ""
		}
		return p.Name()
	}
	return name(s.Video), name(s.Audio), name(s.Input), name(s.RSP)
}
