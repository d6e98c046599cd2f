package commandline

import (
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/clktmr/mupen64/capture"
	"github.com/clktmr/mupen64/messenger"
)

// DefaultCaptureDelay gives the game time to set its audio sample rate,
// which would stop a capture that is already running.
const DefaultCaptureDelay = time.Second

type Emulator interface {
	StartROM(path string) error
	LoadState(path string) error
	InvokeAsync(fn func())
}

type Scripts interface {
	Start(path string) error
}

type VCR interface {
	StartPlayback(path string) error
	StartCapture(path string, flags capture.Flags) error
	StopCapture() error
	IsCapturing() bool
}

// Startup performs the startup actions of Options in reaction to messenger
// events.
type Startup struct {
	opts    Options
	emu     Emulator
	scripts Scripts
	vcr     VCR
	quit    func()
	logger  *log.Logger

	// CaptureDelay is the time between launch and capture start.
	CaptureDelay time.Duration

	mtx   sync.Mutex
	timer *time.Timer
	unsub []func()
}

// NewStartup subscribes to the messages that drive startup. The ROM is
// started on AppReady. On launch the savestate is loaded, then the script
// is started, then movie playback and, after CaptureDelay, capture. quit
// is called if the emulator should exit because playback ended.
func NewStartup(opts Options, emu Emulator, scripts Scripts, vcr VCR, quit func(),
	msgr *messenger.Messenger, logger *log.Logger) *Startup {
	if logger == nil {
		logger = log.Default()
	}
	s := &Startup{
		opts:         opts,
		emu:          emu,
		scripts:      scripts,
		vcr:          vcr,
		quit:         quit,
		logger:       logger,
		CaptureDelay: DefaultCaptureDelay,
	}
	s.unsub = append(s.unsub,
		messenger.Subscribe(msgr, s.appReady),
		messenger.Subscribe(msgr, s.launchedChanged),
		messenger.Subscribe(msgr, s.taskChanged),
	)
	return s
}

// Close unsubscribes and cancels a pending capture start.
func (s *Startup) Close() {
	for _, unsub := range s.unsub {
		unsub()
	}
	s.cancelCapture()
}

func (s *Startup) appReady(messenger.AppReady) {
	if s.opts.ROM == "" {
		return
	}
	s.emu.InvokeAsync(func() {
		if err := s.emu.StartROM(s.opts.ROM); err != nil {
			s.logger.Printf("[CLI] %v", err)
		}
	})
}

func (s *Startup) launchedChanged(msg messenger.EmuLaunchedChanged) {
	if !msg.Launched {
		s.cancelCapture()
		return
	}
	if s.opts.State != "" {
		if err := s.emu.LoadState(s.opts.State); err != nil {
			s.logger.Printf("[CLI] %v", err)
		}
	}
	if s.opts.Lua != "" {
		if err := s.scripts.Start(s.opts.Lua); err != nil {
			s.logger.Printf("[CLI] %v", err)
		}
	}
	if s.opts.Movie != "" {
		path := s.opts.Movie
		s.emu.InvokeAsync(func() {
			if err := s.vcr.StartPlayback(path); err != nil {
				s.logger.Printf("[CLI] %v", err)
			}
		})
	}
	if s.opts.Capture != "" {
		s.mtx.Lock()
		if s.timer != nil {
			s.timer.Stop()
		}
		s.timer = time.AfterFunc(s.CaptureDelay, s.startCapture)
		s.mtx.Unlock()
	}
}

func (s *Startup) startCapture() {
	var flags capture.Flags
	if strings.EqualFold(filepath.Ext(s.opts.Capture), ".gif") {
		flags |= capture.GIF
	}
	if err := s.vcr.StartCapture(s.opts.Capture, flags); err != nil {
		s.logger.Printf("[CLI] %v", err)
	}
}

func (s *Startup) cancelCapture() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Startup) taskChanged(msg messenger.TaskChanged) {
	if !msg.Old.IsPlayback() || msg.New.IsPlayback() {
		return
	}
	if s.opts.StopCaptureOnMovieEnd && s.vcr.IsCapturing() {
		if err := s.vcr.StopCapture(); err != nil {
			s.logger.Printf("[CLI] %v", err)
		}
	}
	if s.opts.StopEmuOnMovieEnd && s.quit != nil {
		s.quit()
	}
}
