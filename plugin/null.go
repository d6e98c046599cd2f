package plugin

import (
	"image"
	"sync"

	"github.com/clktmr/mupen64/frontend"
	"github.com/clktmr/mupen64/rcp/serial/joybus"
)

type null struct {
	name    string
	dialogs frontend.Dialogs
}

func (p *null) Name() string { return p.name }
func (p *null) Config()      { p.info("Nothing to configure.") }
func (p *null) Test()        { p.info("All tests passed.") }
func (p *null) About()       { p.info(p.name) }

func (p *null) info(text string) {
	if p.dialogs != nil {
		p.dialogs.ShowDialog(text, p.name, frontend.Information)
	}
}

// NullVideo keeps a blank framebuffer of a fixed size.
type NullVideo struct {
	null
	mtx sync.Mutex
	fb  *image.RGBA
}

func NewNullVideo(width, height int, dialogs frontend.Dialogs) *NullVideo {
	return &NullVideo{
		null: null{"Null Video", dialogs},
		fb:   image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

func (p *NullVideo) ReadScreen() *image.RGBA {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	cp := image.NewRGBA(p.fb.Rect)
	copy(cp.Pix, p.fb.Pix)
	return cp
}

func (p *NullVideo) UpdateScreen() {}

// Framebuffer returns the frame that ReadScreen copies.
func (p *NullVideo) Framebuffer() *image.RGBA {
	return p.fb
}

// NullAudio discards all samples.
type NullAudio struct {
	null
	rate uint32
}

func NewNullAudio(dialogs frontend.Dialogs) *NullAudio {
	return &NullAudio{null: null{"Null Audio", dialogs}}
}

func (p *NullAudio) SetDacrate(rate uint32)      { p.rate = rate }
func (p *NullAudio) PlaySamples(samples []int16) {}
func (p *NullAudio) Dacrate() uint32             { return p.rate }

// StaticInput reports controller states that are set programmatically, e.g.
// by scripts.
type StaticInput struct {
	null
	mtx     sync.Mutex
	present [joybus.Ports]bool
	samples [joybus.Ports]joybus.Sample
}

// NewStaticInput returns an input plugin with one controller plugged in.
func NewStaticInput(dialogs frontend.Dialogs) *StaticInput {
	p := &StaticInput{null: null{"Static Input", dialogs}}
	p.present[0] = true
	return p
}

func (p *StaticInput) Present(port int) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.present[port]
}

func (p *StaticInput) Poll(port int) joybus.Sample {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.samples[port]
}

func (p *StaticInput) SetPresent(port int, present bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.present[port] = present
}

func (p *StaticInput) Set(port int, s joybus.Sample) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.samples[port] = s
}

type NullRSP struct{ null }

func NewNullRSP(dialogs frontend.Dialogs) *NullRSP {
	return &NullRSP{null{"Null RSP", dialogs}}
}

// NewNullSet returns a set of plugins that don't need any host resources.
func NewNullSet(dialogs frontend.Dialogs) *Set {
	return &Set{
		Video: NewNullVideo(320, 240, dialogs),
		Audio: NewNullAudio(dialogs),
		Input: NewStaticInput(dialogs),
		RSP:   NewNullRSP(dialogs),
	}
}
