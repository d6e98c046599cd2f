// Package emu assembles the emulated console and the host services around
// it into a running emulator.
//
// The frame loop runs on its own goroutine. Machine state is guarded by a
// mutex which is only held while the hardware is stepped, never while hooks
// (movie engine, scripts, capture) run, so those may call back into the
// emulator.
package emu

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clktmr/mupen64/capture"
	"github.com/clktmr/mupen64/carts/summercart64"
	"github.com/clktmr/mupen64/config"
	"github.com/clktmr/mupen64/frontend"
	"github.com/clktmr/mupen64/lua"
	"github.com/clktmr/mupen64/messenger"
	"github.com/clktmr/mupen64/plugin"
	"github.com/clktmr/mupen64/rcp/cpu"
	"github.com/clktmr/mupen64/rcp/periph"
	"github.com/clktmr/mupen64/rcp/serial/joybus"
	"github.com/clktmr/mupen64/rom"
	"github.com/clktmr/mupen64/savestates"
	"github.com/clktmr/mupen64/vcr"
)

const (
	RDRAMSize = 4 << 20

	// The boot code copies the first MiB after the header and boot code to
	// the entry point.
	bootOffset = 0x1000
	bootSize   = 1 << 20

	// Size of the PI register block.
	piRegsSize = 0x34
)

var (
	ErrNotRunning = errors.New("emu: no rom running")
	ErrStarting   = errors.New("emu: a rom is already starting")
)

type Options struct {
	Config    *config.Config
	Plugins   *plugin.Set
	Frontend  frontend.Service
	Messenger *messenger.Messenger
	Logger    *log.Logger
}

type Emulator struct {
	mtx     sync.Mutex
	cfg     *config.Config
	plugins *plugin.Set
	fe      frontend.Service
	msgr    *messenger.Messenger
	logger  *log.Logger
	exec    Executor

	CPU cpu.CPU
	FPU cpu.FPU

	bus    periph.Bus
	pi     *periph.Interface
	rdram  []byte
	romDev *periph.Device
	cart   *summercart64.Cart
	pif    joybus.PIF
	pifRAM [joybus.PIFRAMSize]byte
	rom    *rom.ROM
	header atomic.Pointer[rom.Header]

	VCR        *vcr.VCR
	Savestates *savestates.Manager
	Capture    *capture.Manager
	Lua        *lua.Manager
	overlay    *image.RGBA

	starting atomic.Bool
	launched atomic.Bool
	paused   atomic.Bool
	warp     atomic.Bool
	reset    atomic.Bool
	speed    atomic.Int32
	frames   atomic.Int64
	dacrate  uint32
	wake     chan struct{}
}

// New returns an emulator without a ROM.
func New(opts Options) *Emulator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	plugins := opts.Plugins
	if plugins == nil {
		plugins = plugin.NewNullSet(opts.Frontend)
	}

	e := &Emulator{
		cfg:     cfg,
		plugins: plugins,
		fe:      opts.Frontend,
		msgr:    opts.Messenger,
		logger:  logger,
		rdram:   make([]byte, RDRAMSize),
		romDev:  periph.NewDevice(summercart64.ROMAddr, summercart64.ROMSize),
		dacrate: capture.DefaultDacrate,
		wake:    make(chan struct{}, 1),
	}
	e.speed.Store(int32(cfg.SpeedModifier))
	e.FPU.CPU = &e.CPU
	e.FPU.Dialogs = opts.Frontend
	e.CPU.OnException = func(c *cpu.CPU) {
		e.logger.Printf("[Core] %v exception at %#08x", cpu.CauseCode(c.Cause), c.EPC)
	}
	e.ApplyConfig()

	e.pi = periph.NewInterface(&e.bus, e.rdram)
	e.bus.Map(periph.RegsAddr, piRegsSize, e.pi)
	e.bus.Map(summercart64.ROMAddr, summercart64.ROMSize, e.romDev)
	e.cart = summercart64.New(e.romDev, filepath.Join(cfg.SavesDirectory, "card.vhd"), opts.Frontend)

	screen := plugins.Video.ReadScreen()
	e.overlay = image.NewRGBA(screen.Rect)
	e.Capture = capture.New(&overlayVideo{plugins.Video, e.overlay}, e.msgr, capture.Options{
		FFmpegPath:      cfg.FFmpegPath,
		FFmpegArguments: cfg.FFmpegArguments,
	}, logger)
	e.VCR = vcr.New(e, plugins.Input, e.Capture, e.msgr, e.fe, vcr.Options{
		Readonly:              cfg.VCRReadonly,
		Loop:                  cfg.MovieLoop,
		ResetRecording:        cfg.IsResetRecordingEnabled,
		SeekSavestateInterval: cfg.SeekSavestateInterval,
		SeekSavestateMaxCount: cfg.SeekSavestateMaxCount,
		LagLimit:              cfg.LagLimit,
	}, logger)
	e.pif.Input = e.VCR
	e.Savestates = savestates.New(e, e.VCR, e.msgr, e.fe, cfg.StatesDirectory, logger)
	e.Savestates.SetSlot(cfg.StateSlot)
	e.Lua = lua.NewManager(e, e.VCR, e.msgr, logger)

	messenger.Subscribe(e.msgr, func(msg messenger.SlotChanged) {
		e.cfg.StateSlot = msg.Slot
	})
	messenger.Subscribe(e.msgr, func(msg messenger.ReadonlyChanged) {
		e.cfg.VCRReadonly = msg.Readonly
	})
	return e
}

// ApplyConfig updates the CPU core settings from the config.
func (e *Emulator) ApplyConfig() {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.FPU.EmulateCrashes = e.cfg.EmulateFloatCrashes
	e.CPU.Interpreter = e.cfg.CoreType == config.PureInterpreter
}

// Config returns the settings the emulator was created with.
func (e *Emulator) Config() *config.Config {
	return e.cfg
}

func (e *Emulator) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Emulator) Launched() bool { return e.launched.Load() }
func (e *Emulator) Paused() bool   { return e.paused.Load() }

// FrameCount returns the number of VIs since the ROM was started.
func (e *Emulator) FrameCount() int {
	return int(e.frames.Load())
}

// Overlay is the image scripts draw on. It's composed over every captured
// frame.
func (e *Emulator) Overlay() *image.RGBA {
	return e.overlay
}

// InvokeAsync runs fn on the emulator's background executor.
func (e *Emulator) InvokeAsync(fn func()) {
	e.exec.InvokeAsync(fn)
}

// Wait blocks until all functions passed to InvokeAsync returned.
func (e *Emulator) Wait() {
	e.exec.Wait()
}

// ROMHeader implements [vcr.Core]. It doesn't lock the machine, as the
// movie engine calls it with its own lock held.
func (e *Emulator) ROMHeader() *rom.Header {
	return e.header.Load()
}

// RequestReset implements [vcr.Core].
func (e *Emulator) RequestReset() {
	e.reset.Store(true)
	e.signal()
}

// SaveState implements [vcr.Core].
func (e *Emulator) SaveState(path string) error {
	return e.Savestates.DoFile(path, savestates.Save)
}

// LoadState implements [vcr.Core].
func (e *Emulator) LoadState(path string) error {
	return e.Savestates.DoFile(path, savestates.Load)
}

// PluginNames implements [vcr.Core].
func (e *Emulator) PluginNames() (video, audio, input, rsp string) {
	return e.plugins.Names()
}

// SetWarp implements [vcr.Core].
func (e *Emulator) SetWarp(warp bool) {
	e.warp.Store(warp)
}

// StartROM stops the running ROM, if any, and boots the ROM at path.
func (e *Emulator) StartROM(path string) (err error) {
	if !e.starting.CompareAndSwap(false, true) {
		return ErrStarting
	}
	defer e.starting.Store(false)
	e.msgr.Broadcast(messenger.EmuStartingChanged{Starting: true})
	defer func() {
		e.msgr.Broadcast(messenger.EmuStartingChanged{Starting: false})
		e.msgr.Broadcast(messenger.CoreResult{Op: "start", Err: err})
	}()

	r, err := rom.Load(path)
	if err != nil {
		return fmt.Errorf("emu: %w", err)
	}
	if e.launched.Load() {
		if err := e.Stop(); err != nil {
			return err
		}
	}
	if !r.VerifyChecksum() {
		e.logger.Printf("[Core] %s: checksum mismatch", path)
	}

	e.mtx.Lock()
	e.rom = r
	h := r.Header
	e.header.Store(&h)
	e.romDev.Reset(r.Data)
	if e.cfg.EmulateSDCard {
		if err := e.cart.Map(&e.bus); err != nil {
			e.rom = nil
			e.header.Store(nil)
			e.mtx.Unlock()
			return fmt.Errorf("emu: %w", err)
		}
		e.Savestates.SD = e.cart
	} else {
		e.Savestates.SD = nil
	}
	e.boot()
	e.frames.Store(0)
	e.reset.Store(false)
	e.launched.Store(true)
	e.mtx.Unlock()

	e.Capture.SetFPS(r.VIsPerSecond())
	e.plugins.Audio.SetDacrate(e.dacrate)
	config.AddRecent(&e.cfg.RecentROMs, path)
	e.logger.Printf("[Core] started %s (%s, %s)", r.Name(), r.GameCode(), r.CountryName())
	e.msgr.Broadcast(messenger.EmuLaunchedChanged{Launched: true})
	e.signal()
	return nil
}

// boot resets the hardware and runs the parts of the boot code that matter
// to a freshly started ROM.
func (e *Emulator) boot() {
	clear(e.rdram)
	clear(e.pifRAM[:])
	e.CPU = cpu.CPU{
		Interpreter: e.CPU.Interpreter,
		OnException: e.CPU.OnException,
	}
	e.cart.Init()

	entry := cpu.PhysicalAddress(e.rom.BootAddr)
	e.CPU.PC = entry.KSEG1()
	e.CPU.InterpAddr = e.CPU.PC
	e.bus.Store32(periph.RegsAddr+0x00, uint32(entry))
	e.bus.Store32(periph.RegsAddr+0x04, uint32(summercart64.ROMAddr+bootOffset))
	e.bus.Store32(periph.RegsAddr+0x0c, bootSize-1)
}

// Stop shuts down the running ROM.
func (e *Emulator) Stop() error {
	if !e.launched.Load() {
		return ErrNotRunning
	}
	e.msgr.Broadcast(messenger.EmuStopping{})
	if e.Capture.Capturing() {
		if err := e.Capture.Stop(); err != nil {
			e.logger.Printf("[Core] %v", err)
		}
	}

	e.mtx.Lock()
	e.launched.Store(false)
	e.paused.Store(false)
	e.warp.Store(false)
	e.cart.Unmap(&e.bus)
	e.rom = nil
	e.header.Store(nil)
	e.mtx.Unlock()

	e.logger.Print("[Core] stopped")
	e.msgr.Broadcast(messenger.EmuLaunchedChanged{Launched: false})
	return nil
}

// Reset resets the console at the next VI, unless the movie engine takes
// care of it.
func (e *Emulator) Reset() error {
	if !e.launched.Load() {
		return ErrNotRunning
	}
	e.msgr.Broadcast(messenger.ResetRequested{})
	if e.VCR.RequestReset() {
		return nil
	}
	e.RequestReset()
	return nil
}

func (e *Emulator) SetPaused(paused bool) {
	if e.paused.Swap(paused) == paused {
		return
	}
	e.msgr.Broadcast(messenger.EmuPausedChanged{Paused: paused})
	e.signal()
}

// SetSpeedModifier sets the emulation speed in percent of real time.
func (e *Emulator) SetSpeedModifier(percent int) {
	percent = max(percent, 1)
	e.speed.Store(int32(percent))
	e.cfg.SpeedModifier = percent
	e.msgr.Broadcast(messenger.SpeedModifierChanged{Percent: percent})
}

// SetDacrate changes the audio sample rate as a game would.
func (e *Emulator) SetDacrate(rate uint32) {
	e.mtx.Lock()
	e.dacrate = rate
	e.mtx.Unlock()
	e.plugins.Audio.SetDacrate(rate)
	e.msgr.Broadcast(messenger.DacrateChanged{Rate: rate})
}

func (e *Emulator) frameDuration() time.Duration {
	vis := 60
	if h := e.ROMHeader(); h != nil {
		vis = h.VIsPerSecond()
	}
	return time.Second * 100 / time.Duration(int(e.speed.Load())*vis)
}

// Run executes frames while a ROM is running and not paused, throttled to
// the speed modifier unless warping. It returns when ctx is done.
func (e *Emulator) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	next := time.Now()
	for {
		if !e.launched.Load() || e.paused.Load() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.wake:
			}
			next = time.Now()
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		e.Step()

		if e.warp.Load() {
			next = time.Now()
			continue
		}
		next = next.Add(e.frameDuration())
		d := time.Until(next)
		if d < -100*time.Millisecond {
			next = time.Now()
			continue
		}
		if d <= 0 {
			continue
		}
		timer.Reset(d)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Step emulates a single VI.
func (e *Emulator) Step() {
	if !e.launched.Load() {
		return
	}
	if e.reset.Swap(false) {
		e.mtx.Lock()
		if e.rom != nil {
			e.boot()
		}
		e.mtx.Unlock()
		e.logger.Print("[Core] reset")
		e.msgr.Broadcast(messenger.ResetCompleted{})
	}

	e.mtx.Lock()
	if e.rom == nil {
		e.mtx.Unlock()
		return
	}
	ports := e.pollInput()
	e.frames.Add(1)
	rate, vis := e.dacrate, e.rom.VIsPerSecond()
	e.mtx.Unlock()

	for _, port := range ports {
		e.Lua.AtInput(port)
	}
	e.VCR.AtVI()
	e.Lua.AtVI()
	e.plugins.Video.UpdateScreen()
	e.Capture.AtVI()

	samples := make([]int16, 2*int(rate)/vis)
	e.plugins.Audio.PlaySamples(samples)
	e.Capture.AtAudio(samples)
}

// pifBuffer allocates joybus commands in the PIF RAM.
type pifBuffer struct {
	ram []byte
	n   int
}

func (b *pifBuffer) Alloc(n int) ([]byte, error) {
	if b.n+n > len(b.ram)-1 {
		return nil, fmt.Errorf("emu: pif ram full")
	}
	p := b.ram[b.n : b.n+n]
	b.n += n
	return p, nil
}

// pollInput reads all controllers like a game does once per frame and
// returns the ports that responded.
func (e *Emulator) pollInput() (ports []int) {
	clear(e.pifRAM[:])
	alloc := &pifBuffer{ram: e.pifRAM[:]}
	var cmds [joybus.Ports]joybus.ControllerStateCommand
	for i := range cmds {
		cmd, err := joybus.NewControllerStateCommand(alloc)
		if err != nil {
			e.logger.Printf("[Core] %v", err)
			return nil
		}
		cmds[i] = cmd
	}
	joybus.ControlByte(alloc, joybus.CtrlAbort)
	e.pif.Process(e.pifRAM[:])
	for i, cmd := range cmds {
		if _, err := cmd.State(); err == nil {
			ports = append(ports, i)
		}
	}
	return ports
}

// RecentKind selects one of the recent file lists.
type RecentKind int

const (
	RecentROM RecentKind = iota
	RecentMovie
	RecentScript
)

// RunRecent starts an entry of a recent file list. Movies are always played
// back read-only.
func (e *Emulator) RunRecent(kind RecentKind, path string) {
	switch kind {
	case RecentROM:
		e.InvokeAsync(func() {
			if err := e.StartROM(path); err != nil {
				e.showError(err)
			}
		})
	case RecentMovie:
		e.VCR.SetReadonly(true)
		e.InvokeAsync(func() {
			if err := e.VCR.StartPlayback(path); err != nil {
				e.showError(err)
				return
			}
			config.AddRecent(&e.cfg.RecentMovies, path)
		})
	case RecentScript:
		if err := e.Lua.Start(path); err != nil {
			e.showError(err)
			return
		}
		config.AddRecent(&e.cfg.RecentScripts, path)
	}
}

func (e *Emulator) showError(err error) {
	e.logger.Printf("[Core] %v", err)
	if e.fe != nil {
		e.fe.ShowDialog(err.Error(), "Core", frontend.Error)
	}
}
