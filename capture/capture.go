// Package capture records the emulator's video and audio output.
package capture

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"golang.org/x/image/draw"

	"github.com/clktmr/mupen64/messenger"
	"github.com/clktmr/mupen64/plugin"
)

var (
	ErrCapturing    = errors.New("capture: already capturing")
	ErrNotCapturing = errors.New("capture: not capturing")
)

// Flags select the encoder and tracks of a capture.
type Flags uint8

const (
	// NoAudio omits the audio track.
	NoAudio Flags = 1 << iota

	// GIF encodes an animated GIF instead of running ffmpeg. Audio goes to
	// a WAV file next to it.
	GIF
)

// Sample rate assumed until the game sets one.
const DefaultDacrate = 44100

type encoder interface {
	writeFrame(img *image.RGBA) error
	writeAudio(samples []int16) error
	close() error
}

type Options struct {
	FFmpegPath      string
	FFmpegArguments string

	// Size of the encoded frames. Zero uses the size of the first frame.
	Width, Height int

	// Frames per second, usually the VIs per second of the ROM.
	FPS int
}

// Manager owns the running capture, if any.
type Manager struct {
	mtx    sync.Mutex
	video  plugin.Video
	msgr   *messenger.Messenger
	logger *log.Logger
	opts   Options

	enc    encoder
	size   image.Point
	rate   uint32
	frame  *image.RGBA
	frames int
}

// New returns a Manager reading frames from video. It stops a running
// capture when the game changes the audio sample rate.
func New(video plugin.Video, msgr *messenger.Messenger, opts Options, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if opts.FPS <= 0 {
		opts.FPS = 60
	}
	m := &Manager{video: video, msgr: msgr, opts: opts, logger: logger}
	messenger.Subscribe(msgr, m.dacrateChanged)
	return m
}

// SetFPS sets the frame rate of future captures.
func (m *Manager) SetFPS(fps int) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if fps > 0 {
		m.opts.FPS = fps
	}
}

func (m *Manager) dacrateChanged(msg messenger.DacrateChanged) {
	m.mtx.Lock()
	old := m.rate
	m.rate = msg.Rate
	if m.enc == nil || old == 0 || old == msg.Rate {
		m.mtx.Unlock()
		return
	}
	m.logger.Printf("[Capture] sample rate changed from %d to %d, stopping capture", old, msg.Rate)
	err := m.stop()
	m.mtx.Unlock()
	if err != nil {
		m.logger.Printf("[Capture] %v", err)
	}
	m.msgr.Broadcast(messenger.CapturingChanged{Capturing: false})
}

// Start begins capturing to path.
func (m *Manager) Start(path string, flags Flags) (err error) {
	m.mtx.Lock()
	if m.enc != nil {
		m.mtx.Unlock()
		return ErrCapturing
	}

	m.size = image.Pt(m.opts.Width, m.opts.Height)
	if m.size.X <= 0 || m.size.Y <= 0 {
		m.size = m.video.ReadScreen().Rect.Size()
	}
	if m.size.X <= 0 || m.size.Y <= 0 {
		m.mtx.Unlock()
		return fmt.Errorf("capture: invalid frame size %v", m.size)
	}
	rate := m.rate
	if rate == 0 {
		rate = DefaultDacrate
	}
	withAudio := flags&NoAudio == 0

	if flags&GIF != 0 {
		m.enc, err = newGIFEncoder(path, m.opts.FPS, rate, withAudio)
	} else {
		m.enc, err = newFFmpeg(m.opts.FFmpegPath, m.opts.FFmpegArguments, path,
			m.size, m.opts.FPS, rate, withAudio, m.logger)
	}
	if err != nil {
		m.enc = nil
		m.mtx.Unlock()
		return err
	}
	m.frame = image.NewRGBA(image.Rectangle{Max: m.size})
	m.frames = 0
	m.logger.Printf("[Capture] started %s (%dx%d, %d fps, %d Hz)", path, m.size.X, m.size.Y, m.opts.FPS, rate)
	m.mtx.Unlock()

	m.msgr.Broadcast(messenger.CapturingChanged{Capturing: true})
	return nil
}

// Stop finishes the running capture.
func (m *Manager) Stop() error {
	m.mtx.Lock()
	if m.enc == nil {
		m.mtx.Unlock()
		return ErrNotCapturing
	}
	err := m.stop()
	m.mtx.Unlock()
	m.msgr.Broadcast(messenger.CapturingChanged{Capturing: false})
	return err
}

func (m *Manager) stop() error {
	err := m.enc.close()
	m.enc = nil
	m.logger.Printf("[Capture] stopped after %d frames", m.frames)
	return err
}

func (m *Manager) Capturing() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.enc != nil
}

// Frames returns the number of frames written by the current or last
// capture.
func (m *Manager) Frames() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.frames
}

// AtVI grabs the current frame from the video plugin.
func (m *Manager) AtVI() {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.enc == nil {
		return
	}
	src := m.video.ReadScreen()
	if src.Rect.Size() == m.size {
		draw.Copy(m.frame, image.Point{}, src, src.Rect, draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(m.frame, m.frame.Rect, src, src.Rect, draw.Src, nil)
	}
	if err := m.enc.writeFrame(m.frame); err != nil {
		m.fail(err)
		return
	}
	m.frames++
}

// AtAudio adds interleaved stereo samples to the audio track.
func (m *Manager) AtAudio(samples []int16) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.enc == nil {
		return
	}
	if err := m.enc.writeAudio(samples); err != nil {
		m.fail(err)
	}
}

// fail stops the capture after an encoder error. The broadcast is deferred
// to another goroutine because m.mtx is held.
func (m *Manager) fail(err error) {
	m.logger.Printf("[Capture] %v", err)
	if err := m.stop(); err != nil {
		m.logger.Printf("[Capture] %v", err)
	}
	go m.msgr.Broadcast(messenger.CapturingChanged{Capturing: false})
}
