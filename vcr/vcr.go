// Package vcr records and replays controller input.
//
// The VCR sits between the PIF and the input plugin. While recording it
// appends every polled sample to the movie, during playback it answers polls
// from the movie instead. Savestates carry a freeze block, so a movie can be
// continued or rerecorded from any savestate made while it was active.
package vcr

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/clktmr/mupen64/capture"
	"github.com/clktmr/mupen64/frontend"
	"github.com/clktmr/mupen64/messenger"
	"github.com/clktmr/mupen64/movie"
	"github.com/clktmr/mupen64/rcp/serial/joybus"
	"github.com/clktmr/mupen64/rom"
)

var (
	ErrActive       = errors.New("vcr: a movie is already active")
	ErrIdle         = errors.New("vcr: no movie active")
	ErrNoROM        = errors.New("vcr: no rom loaded")
	ErrCancelled    = errors.New("vcr: cancelled")
	ErrNoCapture    = errors.New("vcr: capture unavailable")
	ErrNotFromMovie = errors.New("vcr: savestate isn't from a movie")
	ErrWrongMovie   = errors.New("vcr: savestate is from a different movie")
	ErrAfterEnd     = errors.New("vcr: savestate is after the end of the movie")
	ErrFreezeBlock  = errors.New("vcr: invalid freeze block")
	ErrSeekRange    = errors.New("vcr: seek target out of range")
)

// Core is the emulator the VCR controls.
type Core interface {
	// ROMHeader returns the header of the running ROM, nil if none.
	ROMHeader() *rom.Header

	// RequestReset resets the console at the next VI and broadcasts
	// ResetCompleted afterwards.
	RequestReset()

	SaveState(path string) error
	LoadState(path string) error

	// Snapshot and Restore keep machine state in memory for seeking.
	Snapshot() ([]byte, error)
	Restore(state []byte) error

	PluginNames() (video, audio, input, rsp string)

	// SetWarp runs the emulation as fast as possible.
	SetWarp(warp bool)
}

// Capturer is implemented by capture.Manager.
type Capturer interface {
	Start(path string, flags capture.Flags) error
	Stop() error
	Capturing() bool
}

type Options struct {
	Readonly bool
	Loop     bool

	// ResetRecording stores console resets in the recorded movie.
	ResetRecording bool

	// A seek savestate is made every SeekSavestateInterval frames, keeping
	// at most SeekSavestateMaxCount. Zero disables seek savestates.
	SeekSavestateInterval int
	SeekSavestateMaxCount int

	// LagLimit is the number of VIs without an input poll after which
	// LagLimitExceeded is sent. Zero disables the check.
	LagLimit int
}

// RecordFrom selects the state a new recording starts from.
type RecordFrom int

const (
	FromReset RecordFrom = iota
	FromSnapshot
	FromExistingSnapshot
	FromEEPROM
)

type VCR struct {
	mtx      sync.Mutex
	core     Core
	input    joybus.InputSource
	capturer Capturer
	msgr     *messenger.Messenger
	fe       frontend.Service
	logger   *log.Logger
	opts     Options

	task    movie.Task
	movie   *movie.Movie
	path    string
	sample  int
	vi      int
	lag     int
	lagged  bool
	reset   bool // record a reset at the next poll
	restart bool // loop at the next VI

	seek seeker

	pending []messenger.Message
}

// New returns an idle VCR wrapping input. It stops the active movie when the
// emulator stops.
func New(core Core, input joybus.InputSource, capturer Capturer, msgr *messenger.Messenger,
	fe frontend.Service, opts Options, logger *log.Logger) *VCR {
	if logger == nil {
		logger = log.Default()
	}
	v := &VCR{
		core:     core,
		input:    input,
		capturer: capturer,
		msgr:     msgr,
		fe:       fe,
		logger:   logger,
		opts:     opts,
	}
	v.seek.reset()
	messenger.Subscribe(msgr, func(messenger.ResetCompleted) { v.resetCompleted() })
	messenger.Subscribe(msgr, func(messenger.EmuStopping) {
		if err := v.Stop(); err != nil && err != ErrIdle {
			v.logger.Printf("[VCR] %v", err)
		}
	})
	return v
}

// unlock releases v.mtx and sends the messages queued while it was held.
func (v *VCR) unlock() {
	msgs := v.pending
	v.pending = nil
	v.mtx.Unlock()
	for _, msg := range msgs {
		v.msgr.Broadcast(msg)
	}
}

func (v *VCR) queue(msg messenger.Message) {
	v.pending = append(v.pending, msg)
}

func (v *VCR) setTask(t movie.Task) {
	if v.task == t {
		return
	}
	v.logger.Printf("[VCR] task %v -> %v", v.task, t)
	v.queue(messenger.TaskChanged{Old: v.task, New: t})
	v.task = t
}

// snapshotPath returns the savestate a movie starts from.
func snapshotPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".st"
}

func (v *VCR) Task() movie.Task {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.task
}

// Path returns the file of the active movie.
func (v *VCR) Path() string {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.path
}

func (v *VCR) IsPlaying() bool {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.task.IsPlayback()
}

func (v *VCR) IsRecording() bool {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.task.IsRecording()
}

// CurrentSample returns the index of the next sample to be polled.
func (v *VCR) CurrentSample() int {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.sample
}

// CurrentVI returns the number of VIs since the movie started.
func (v *VCR) CurrentVI() int {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.vi
}

// Length returns the number of samples in the active movie.
func (v *VCR) Length() int {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	if v.movie == nil {
		return 0
	}
	return len(v.movie.Inputs)
}

func (v *VCR) Rerecords() uint32 {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	if v.movie == nil {
		return 0
	}
	return v.movie.Rerecords
}

func (v *VCR) Readonly() bool {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.opts.Readonly
}

func (v *VCR) SetReadonly(readonly bool) {
	v.mtx.Lock()
	defer v.unlock()
	if v.opts.Readonly == readonly {
		return
	}
	v.opts.Readonly = readonly
	v.queue(messenger.ReadonlyChanged{Readonly: readonly})
}

func (v *VCR) Loop() bool {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.opts.Loop
}

func (v *VCR) SetLoop(loop bool) {
	v.mtx.Lock()
	defer v.unlock()
	if v.opts.Loop == loop {
		return
	}
	v.opts.Loop = loop
	v.queue(messenger.MovieLoopChanged{Loop: loop})
}

// StartRecord begins recording a new movie to path. When starting from a
// snapshot, the savestate is stored next to the movie.
func (v *VCR) StartRecord(path string, from RecordFrom, author, description string) error {
	v.mtx.Lock()
	if v.task != movie.Idle {
		v.unlock()
		return ErrActive
	}
	h := v.core.ROMHeader()
	if h == nil {
		v.unlock()
		return ErrNoROM
	}

	flags := movie.FromStart
	switch from {
	case FromSnapshot, FromExistingSnapshot:
		flags = movie.FromSnapshot
	case FromEEPROM:
		flags = movie.FromEEPROM
	}
	var controllers movie.ControllerFlags
	for port := range joybus.Ports {
		if v.input.Present(port) {
			controllers |= 1 << port
		}
	}
	m := movie.New(flags, controllers)
	m.UID = uint32(time.Now().Unix())
	m.VIsPerSecond = uint8(h.VIsPerSecond())
	m.ROMCRC = h.CRC1
	m.ROMCountry = uint16(h.Country)
	movie.SetString(m.ROMName[:], h.Name())
	video, audio, input, rsp := v.core.PluginNames()
	movie.SetString(m.VideoPlugin[:], video)
	movie.SetString(m.AudioPlugin[:], audio)
	movie.SetString(m.InputPlugin[:], input)
	movie.SetString(m.RSPPlugin[:], rsp)
	movie.SetString(m.Author[:], author)
	movie.SetString(m.Description[:], description)

	if err := m.Save(path); err != nil {
		v.unlock()
		return fmt.Errorf("vcr: %w", err)
	}

	v.movie, v.path = m, path
	v.sample, v.vi = 0, 0
	v.reset, v.restart = false, false
	v.seek.reset()
	v.queue(messenger.RerecordsChanged{Rerecords: 0})
	v.logger.Printf("[VCR] recording %s from %v", path, flags)

	st := snapshotPath(path)
	switch from {
	case FromSnapshot:
		v.setTask(movie.StartRecordingFromSnapshot)
		v.unlock()
		return v.started(m, v.core.SaveState(st), movie.Recording)
	case FromExistingSnapshot:
		v.setTask(movie.StartRecordingFromExistingSnapshot)
		v.unlock()
		return v.started(m, v.core.LoadState(st), movie.Recording)
	}
	v.setTask(movie.StartRecordingFromReset)
	v.unlock()
	v.core.RequestReset()
	return nil
}

// started finishes starting m from a snapshot.
func (v *VCR) started(m *movie.Movie, err error, t movie.Task) error {
	v.mtx.Lock()
	defer v.unlock()
	if v.movie != m {
		return ErrIdle
	}
	if err != nil {
		st := snapshotPath(v.path)
		v.movie, v.path = nil, ""
		v.setTask(movie.Idle)
		return fmt.Errorf("vcr: %s: %w", st, err)
	}
	v.setTask(t)
	return nil
}

// StartPlayback stops the active movie and plays the movie at path. If the
// movie was made with a different ROM the user is asked whether to continue.
func (v *VCR) StartPlayback(path string) error {
	m, err := movie.Load(path)
	if errors.Is(err, movie.ErrTruncated) {
		v.logger.Printf("[VCR] %s: %v", path, err)
		v.fe.ShowStatusbar("Movie input data is truncated")
	} else if err != nil {
		return fmt.Errorf("vcr: %w", err)
	}

	h := v.core.ROMHeader()
	if h == nil {
		return ErrNoROM
	}
	name := movie.String(m.ROMName[:])
	if name != h.Name() || m.ROMCRC != h.CRC1 {
		text := fmt.Sprintf("The movie was recorded with the ROM '%s' (CRC %08X), "+
			"but '%s' (CRC %08X) is running.\nPlay the movie anyway?", name, m.ROMCRC, h.Name(), h.CRC1)
		if !v.fe.ShowAskDialog(text, "VCR", true) {
			return ErrCancelled
		}
	}
	for port := range joybus.Ports {
		if m.ControllerFlags.Present(port) && !v.input.Present(port) {
			v.fe.ShowStatusbar(fmt.Sprintf("Controller %d is present in the movie but not plugged in", port+1))
		}
	}

	v.mtx.Lock()
	if v.task != movie.Idle {
		if err := v.stop(); err != nil {
			v.logger.Printf("[VCR] %v", err)
		}
	}
	v.movie, v.path = m, path
	v.reset, v.restart = false, false
	v.seek.reset()
	v.queue(messenger.RerecordsChanged{Rerecords: uint64(m.Rerecords)})
	v.logger.Printf("[VCR] playing %s (%d samples, %d rerecords)", path, len(m.Inputs), m.Rerecords)
	v.unlock()

	return v.rewind()
}

// rewind restarts playback of the active movie.
func (v *VCR) rewind() error {
	v.mtx.Lock()
	m := v.movie
	if m == nil {
		v.unlock()
		return ErrIdle
	}
	v.sample, v.vi = 0, 0
	v.queue(messenger.CurrentSampleChanged{Sample: 0})
	if m.StartFlags&movie.FromSnapshot == 0 {
		v.setTask(movie.StartPlaybackFromReset)
		v.unlock()
		v.core.RequestReset()
		return nil
	}
	v.setTask(movie.StartPlaybackFromSnapshot)
	st := snapshotPath(v.path)
	v.unlock()
	return v.started(m, v.core.LoadState(st), movie.Playback)
}

func (v *VCR) resetCompleted() {
	v.mtx.Lock()
	defer v.unlock()
	switch v.task {
	case movie.StartRecordingFromReset:
		v.sample, v.vi = 0, 0
		v.setTask(movie.Recording)
	case movie.StartPlaybackFromReset:
		v.sample, v.vi = 0, 0
		v.setTask(movie.Playback)
	}
}

// Stop ends the active movie. A recording is written to its file.
func (v *VCR) Stop() error {
	v.mtx.Lock()
	defer v.unlock()
	if v.task == movie.Idle {
		return ErrIdle
	}
	return v.stop()
}

func (v *VCR) stop() (err error) {
	if v.task.IsRecording() && v.movie != nil {
		v.movie.VIs = uint32(v.vi)
		if err = v.movie.Save(v.path); err != nil {
			err = fmt.Errorf("vcr: %w", err)
		}
	}
	if v.seek.active() {
		v.endSeek()
	}
	v.logger.Printf("[VCR] stopped %s", v.path)
	v.movie, v.path = nil, ""
	v.reset, v.restart = false, false
	v.seek.reset()
	v.setTask(movie.Idle)
	return err
}

// RequestReset reports if the VCR takes care of a console reset requested by
// the user. Resets are recorded if enabled, and ignored during playback.
func (v *VCR) RequestReset() bool {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	switch {
	case v.task.IsPlayback():
		return true
	case v.task == movie.Recording && v.opts.ResetRecording:
		v.reset = true
		return true
	}
	return false
}

// Present reports the controllers of the active movie, or those of the
// input plugin if idle.
func (v *VCR) Present(port int) bool {
	v.mtx.Lock()
	m := v.movie
	v.mtx.Unlock()
	if m != nil {
		return m.ControllerFlags.Present(port)
	}
	return v.input.Present(port)
}

// Poll returns the sample the game sees for port.
func (v *VCR) Poll(port int) joybus.Sample {
	live := v.input.Poll(port)
	v.mtx.Lock()
	s, reset := v.poll(port, live)
	v.unlock()
	if reset {
		v.core.RequestReset()
	}
	return s
}

func (v *VCR) poll(port int, live joybus.Sample) (s joybus.Sample, reset bool) {
	v.lag = 0
	if v.lagged {
		v.lagged = false
		v.queue(messenger.LagLimitExceeded{Exceeded: false})
	}

	switch v.task {
	case movie.Idle:
		return live, false
	case movie.Recording:
		if !v.movie.ControllerFlags.Present(port) {
			return s, false
		}
		if v.seek.active() && v.sample < v.seek.target && v.sample < len(v.movie.Inputs) {
			// replay what was recorded up to the seek target
			s = v.movie.Inputs[v.sample]
			v.sample++
			v.queue(messenger.CurrentSampleChanged{Sample: v.sample})
			if s.Buttons() == movie.ResetButtons {
				return joybus.Sample{}, true
			}
			return s, false
		}
		if v.reset && port == v.firstPort() {
			v.reset = false
			live, reset = joybus.NewSample(movie.ResetButtons, 0, 0), true
		}
		v.movie.Inputs = append(v.movie.Inputs[:v.sample], live)
		v.sample++
		v.queue(messenger.CurrentSampleChanged{Sample: v.sample})
		if reset {
			return s, true
		}
		return live, false
	case movie.Playback:
		if !v.movie.ControllerFlags.Present(port) || v.restart {
			return s, false
		}
		if v.sample >= len(v.movie.Inputs) {
			v.ended()
			return live, false
		}
		s = v.movie.Inputs[v.sample]
		v.sample++
		v.queue(messenger.CurrentSampleChanged{Sample: v.sample})
		if s.Buttons() == movie.ResetButtons {
			return joybus.Sample{}, true
		}
		return s, false
	}
	return s, false
}

func (v *VCR) firstPort() int {
	for port := range joybus.Ports {
		if v.movie.ControllerFlags.Present(port) {
			return port
		}
	}
	return 0
}

func (v *VCR) ended() {
	if v.opts.Loop {
		v.restart = true
		return
	}
	v.logger.Printf("[VCR] movie ended after %d samples", v.sample)
	if err := v.stop(); err != nil {
		v.logger.Printf("[VCR] %v", err)
	}
}

// AtVI is called on every vertical interrupt.
func (v *VCR) AtVI() {
	v.mtx.Lock()
	active := v.task == movie.Recording || v.task == movie.Playback
	if active {
		v.vi++
		if v.task == movie.Recording {
			v.movie.VIs = uint32(v.vi)
		}
	}

	if v.opts.LagLimit > 0 {
		v.lag++
		if v.lag > v.opts.LagLimit && !v.lagged {
			v.lagged = true
			v.logger.Printf("[VCR] no input poll for %d VIs", v.lag)
			v.queue(messenger.LagLimitExceeded{Exceeded: true})
		}
	}

	restart := v.restart
	v.restart = false
	snapshot := active && v.wantSeekSavestate()
	warpOff := false
	if active && v.seek.active() && v.sample >= v.seek.target {
		v.endSeek()
		warpOff = true
	}
	m, sample, vi := v.movie, v.sample, v.vi
	v.unlock()

	if warpOff {
		v.core.SetWarp(false)
	}
	if snapshot {
		data, err := v.core.Snapshot()
		if err != nil {
			v.logger.Printf("[VCR] seek savestate: %v", err)
		} else {
			v.mtx.Lock()
			if v.movie == m {
				v.addSeekSavestate(sample, vi, data)
			}
			v.unlock()
		}
	}
	if restart {
		if err := v.rewind(); err != nil {
			v.logger.Printf("[VCR] %v", err)
		}
	}
}

// IsCapturing reports if video capture is running.
func (v *VCR) IsCapturing() bool {
	return v.capturer != nil && v.capturer.Capturing()
}

func (v *VCR) StartCapture(path string, flags capture.Flags) error {
	if v.capturer == nil {
		return ErrNoCapture
	}
	return v.capturer.Start(path, flags)
}

func (v *VCR) StopCapture() error {
	if v.capturer == nil {
		return ErrNoCapture
	}
	return v.capturer.Stop()
}
