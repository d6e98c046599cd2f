package emu

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clktmr/mupen64/carts/summercart64"
	"github.com/clktmr/mupen64/config"
	"github.com/clktmr/mupen64/frontend"
	"github.com/clktmr/mupen64/messenger"
	"github.com/clktmr/mupen64/movie"
	"github.com/clktmr/mupen64/plugin"
	"github.com/clktmr/mupen64/rcp/cpu"
	"github.com/clktmr/mupen64/rcp/serial/joybus"
	"github.com/clktmr/mupen64/savestates"
	"github.com/clktmr/mupen64/vcr"
)

type syncBuffer struct {
	mtx sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.buf.String()
}

type harness struct {
	dir     string
	cfg     *config.Config
	msgr    *messenger.Messenger
	plugins *plugin.Set
	input   *plugin.StaticInput
	log     *syncBuffer
	emu     *Emulator

	mtx   sync.Mutex
	kinds []messenger.Kind
	msgs  []messenger.Message
}

func newHarness(t *testing.T, configure func(cfg *config.Config)) *harness {
	h := &harness{dir: t.TempDir(), log: &syncBuffer{}}
	logger := log.New(h.log, "", 0)
	h.cfg = config.Default()
	h.cfg.SavesDirectory = filepath.Join(h.dir, "save")
	h.cfg.StatesDirectory = filepath.Join(h.dir, "st")
	h.cfg.SeekSavestateInterval = 0
	if configure != nil {
		configure(h.cfg)
	}
	h.msgr = messenger.New(logger)
	fe := &frontend.Headless{Logger: logger}
	h.plugins = plugin.NewNullSet(fe)
	h.input = h.plugins.Input.(*plugin.StaticInput)
	for _, k := range []messenger.Kind{
		messenger.KindEmuStartingChanged, messenger.KindEmuLaunchedChanged,
		messenger.KindCoreResult, messenger.KindEmuStopping,
		messenger.KindResetRequested, messenger.KindResetCompleted,
		messenger.KindEmuPausedChanged, messenger.KindSpeedModifierChanged,
	} {
		h.msgr.Subscribe(k, func(msg messenger.Message) {
			h.mtx.Lock()
			h.kinds = append(h.kinds, msg.Kind())
			h.msgs = append(h.msgs, msg)
			h.mtx.Unlock()
		})
	}
	h.emu = New(Options{
		Config:    h.cfg,
		Plugins:   h.plugins,
		Frontend:  fe,
		Messenger: h.msgr,
		Logger:    logger,
	})
	return h
}

func (h *harness) received() ([]messenger.Kind, []messenger.Message) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	kinds, msgs := h.kinds, h.msgs
	h.kinds, h.msgs = nil, nil
	return kinds, msgs
}

func (h *harness) writeROM(t *testing.T) (string, []byte) {
	data := make([]byte, 2<<20)
	binary.BigEndian.PutUint32(data, 0x80371240)
	binary.BigEndian.PutUint32(data[0x08:], 0x80000400)
	copy(data[0x20:], "TEST ROM            ")
	copy(data[0x3b:], "NTSE")
	for i := 0x40; i < len(data); i++ {
		data[i] = byte(i * 13)
	}
	path := filepath.Join(h.dir, "test.z64")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path, data
}

func (h *harness) start(t *testing.T) []byte {
	path, data := h.writeROM(t)
	if err := h.emu.StartROM(path); err != nil {
		t.Fatal(err)
	}
	h.received()
	return data
}

func TestStartROM(t *testing.T) {
	h := newHarness(t, nil)
	path, data := h.writeROM(t)
	if err := h.emu.StartROM(path); err != nil {
		t.Fatal(err)
	}
	kinds, msgs := h.received()
	expected := []messenger.Kind{
		messenger.KindEmuStartingChanged, messenger.KindEmuLaunchedChanged,
		messenger.KindEmuStartingChanged, messenger.KindCoreResult,
	}
	if !slices.Equal(kinds, expected) {
		t.Fatalf("expected %v, got %v", expected, kinds)
	}
	if res := msgs[3].(messenger.CoreResult); res.Err != nil {
		t.Fatalf("unexpected error %v", res.Err)
	}
	if !h.emu.Launched() {
		t.Fatal("expected emulator to be launched")
	}
	if h.emu.ROMHeader() == nil || h.emu.ROMHeader().GameCode() != "NTSE" {
		t.Fatalf("unexpected header %+v", h.emu.ROMHeader())
	}
	if got := h.emu.CPU.PC; got != 0xa000_0400 {
		t.Fatalf("expected %#x, got %#x", 0xa000_0400, got)
	}
	for _, i := range []int{0, 1, 2, 3, 4, 1000, bootSize - 1} {
		if got, want := h.emu.rdram[0x400+i], data[bootOffset+i]; got != want {
			t.Fatalf("rdram[%#x]: expected %#x, got %#x", 0x400+i, want, got)
		}
	}
	if h.cfg.RecentROMs[0] != path {
		t.Fatalf("expected %v, got %v", path, h.cfg.RecentROMs)
	}
}

func TestStartROMMissing(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.emu.StartROM(filepath.Join(h.dir, "missing.z64")); err == nil {
		t.Fatal("expected error")
	}
	_, msgs := h.received()
	res, ok := msgs[len(msgs)-1].(messenger.CoreResult)
	if !ok || res.Err == nil {
		t.Fatalf("expected failed core result, got %v", msgs)
	}
	if h.emu.Launched() {
		t.Fatal("expected emulator not to be launched")
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.emu.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected %v, got %v", ErrNotRunning, err)
	}
	h.start(t)
	if err := h.emu.Stop(); err != nil {
		t.Fatal(err)
	}
	kinds, _ := h.received()
	expected := []messenger.Kind{messenger.KindEmuStopping, messenger.KindEmuLaunchedChanged}
	if !slices.Equal(kinds, expected) {
		t.Fatalf("expected %v, got %v", expected, kinds)
	}
	if h.emu.Launched() || h.emu.ROMHeader() != nil {
		t.Fatal("expected emulator to be stopped")
	}
	if _, err := h.emu.MarshalState(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected %v, got %v", ErrNotRunning, err)
	}
}

func TestReset(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.emu.Reset(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected %v, got %v", ErrNotRunning, err)
	}
	data := h.start(t)
	h.emu.rdram[0x400] = ^data[bootOffset]
	h.emu.rdram[0x10] = 0x55
	if err := h.emu.Reset(); err != nil {
		t.Fatal(err)
	}
	h.emu.Step()
	kinds, _ := h.received()
	expected := []messenger.Kind{messenger.KindResetRequested, messenger.KindResetCompleted}
	if !slices.Equal(kinds, expected) {
		t.Fatalf("expected %v, got %v", expected, kinds)
	}
	if h.emu.rdram[0x400] != data[bootOffset] || h.emu.rdram[0x10] != 0 {
		t.Fatal("rdram wasn't reset")
	}
}

func TestStepPollsInput(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	s := joybus.NewSample(joybus.ButtonA, 10, -10)
	h.input.Set(0, s)
	for range 3 {
		h.emu.Step()
	}
	if got := h.emu.FrameCount(); got != 3 {
		t.Fatalf("expected %v, got %v", 3, got)
	}
	if got := joybus.Sample(h.emu.pifRAM[3:7]); got != s {
		t.Fatalf("expected %v, got %v", s, got)
	}
	// Unplugged ports report no response.
	if h.emu.pifRAM[7+1]&0x80 == 0 {
		t.Fatalf("expected no response on port 1, got %#x", h.emu.pifRAM[7+1])
	}
}

func TestRecordAndPlayback(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	path := filepath.Join(h.dir, "test.m64")
	if err := h.emu.VCR.StartRecord(path, vcr.FromReset, "author", ""); err != nil {
		t.Fatal(err)
	}
	recorded := []joybus.Sample{
		joybus.NewSample(joybus.ButtonA, 0, 0),
		joybus.NewSample(joybus.ButtonB, 1, 2),
		joybus.NewSample(joybus.ButtonZ, -3, 4),
	}
	for _, s := range recorded {
		h.input.Set(0, s)
		h.emu.Step()
	}
	if got := h.emu.VCR.CurrentSample(); got != len(recorded) {
		t.Fatalf("expected %v, got %v", len(recorded), got)
	}
	if err := h.emu.VCR.Stop(); err != nil {
		t.Fatal(err)
	}
	m, err := movie.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(m.Inputs, recorded) {
		t.Fatalf("expected %v, got %v", recorded, m.Inputs)
	}

	h.input.Set(0, joybus.Sample{})
	if err := h.emu.VCR.StartPlayback(path); err != nil {
		t.Fatal(err)
	}
	for _, s := range recorded {
		h.emu.Step()
		if got := joybus.Sample(h.emu.pifRAM[3:7]); got != s {
			t.Fatalf("expected %v, got %v", s, got)
		}
	}
}

func TestSavestate(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.emu.Step()
	h.emu.Step()
	h.emu.rdram[0x20] = 0x42
	path := filepath.Join(h.dir, "test.st")
	if err := h.emu.SaveState(path); err != nil {
		t.Fatal(err)
	}
	h.emu.rdram[0x20] = 0
	h.emu.Step()
	if err := h.emu.LoadState(path); err != nil {
		t.Fatal(err)
	}
	if h.emu.rdram[0x20] != 0x42 {
		t.Fatal("rdram wasn't restored")
	}
	if got := h.emu.FrameCount(); got != 2 {
		t.Fatalf("expected %v, got %v", 2, got)
	}

	snap, err := h.emu.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if err := h.emu.Restore(snap[:len(snap)-1]); !errors.Is(err, ErrState) {
		t.Fatalf("expected %v, got %v", ErrState, err)
	}
	if err := h.emu.Restore([]byte{1, 2, 3}); !errors.Is(err, ErrState) {
		t.Fatalf("expected %v, got %v", ErrState, err)
	}
}

func TestSDCard(t *testing.T) {
	tests := map[string]struct {
		enabled  bool
		expected uint32
	}{
		"enabled":  {true, 0x53437632},
		"disabled": {false, 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, func(cfg *config.Config) {
				cfg.EmulateSDCard = tc.enabled
			})
			h.start(t)
			h.emu.bus.Store32(summercart64.RegsAddr+0x10, 0x5f554e4c)
			h.emu.bus.Store32(summercart64.RegsAddr+0x10, 0x4f434b5f)
			if got := h.emu.bus.Load32(summercart64.RegsAddr + 0x0c); got != tc.expected {
				t.Fatalf("expected %#x, got %#x", tc.expected, got)
			}
			if (h.emu.Savestates.SD != nil) != tc.enabled {
				t.Fatalf("expected sd sidecar %v", tc.enabled)
			}
			h.emu.Stop()
			if got := h.emu.bus.Load32(summercart64.RegsAddr + 0x0c); got != 0 {
				t.Fatalf("expected %#x, got %#x", 0, got)
			}
		})
	}
}

func TestFPUConfig(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.EmulateFloatCrashes = true
		cfg.CoreType = config.PureInterpreter
	})
	if !h.emu.FPU.EmulateCrashes || !h.emu.CPU.Interpreter {
		t.Fatal("config wasn't applied")
	}
	h.start(t)
	if !h.emu.CPU.Interpreter {
		t.Fatal("boot lost the core type")
	}
	h.emu.FPU.Regs.SetS(1, 1e-40)
	h.emu.FPU.Regs.SetS(3, 7)
	if err := h.emu.FPU.Execute(cpu.FunctSqrt, cpu.FmtS, 3, 1, 0); !errors.Is(err, cpu.ErrFPE) {
		t.Fatalf("expected %v, got %v", cpu.ErrFPE, err)
	}
	if got := h.emu.FPU.Regs.S(3); got != 7 {
		t.Fatalf("expected %v, got %v", 7, got)
	}
	if got := h.emu.CPU.Exceptions(); got != 1 {
		t.Fatalf("expected %v, got %v", 1, got)
	}
	if !strings.Contains(h.log.String(), "exception") {
		t.Fatalf("expected exception to be logged, got %q", h.log.String())
	}
}

func TestPauseAndSpeed(t *testing.T) {
	h := newHarness(t, nil)
	h.emu.SetPaused(true)
	h.emu.SetPaused(true)
	h.emu.SetSpeedModifier(200)
	kinds, msgs := h.received()
	expected := []messenger.Kind{messenger.KindEmuPausedChanged, messenger.KindSpeedModifierChanged}
	if !slices.Equal(kinds, expected) {
		t.Fatalf("expected %v, got %v", expected, kinds)
	}
	if got := msgs[1].(messenger.SpeedModifierChanged).Percent; got != 200 {
		t.Fatalf("expected %v, got %v", 200, got)
	}
	if h.cfg.SpeedModifier != 200 {
		t.Fatalf("expected %v, got %v", 200, h.cfg.SpeedModifier)
	}
	if got := h.emu.frameDuration(); got != time.Second/120 {
		t.Fatalf("expected %v, got %v", time.Second/120, got)
	}
}

func TestRun(t *testing.T) {
	tests := map[string]struct {
		warp     bool
		min, max int
	}{
		"throttled": {warp: false, min: 2, max: 30},
		"warp":      {warp: true, min: 31, max: 1 << 30},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.start(t)
			h.emu.SetWarp(tc.warp)
			ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
			defer cancel()
			if err := h.emu.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("expected %v, got %v", context.DeadlineExceeded, err)
			}
			if got := h.emu.FrameCount(); got < tc.min || got > tc.max {
				t.Fatalf("expected frames in [%v, %v], got %v", tc.min, tc.max, got)
			}
		})
	}
}

func TestRunPaused(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.emu.SetPaused(true)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	h.emu.Run(ctx)
	if got := h.emu.FrameCount(); got != 0 {
		t.Fatalf("expected %v, got %v", 0, got)
	}
}

func TestRunRecent(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.VCRReadonly = false
	})
	romPath, _ := h.writeROM(t)
	h.emu.RunRecent(RecentROM, romPath)
	h.emu.Wait()
	if !h.emu.Launched() {
		t.Fatal("expected emulator to be launched")
	}

	h.emu.RunRecent(RecentMovie, filepath.Join(h.dir, "missing.m64"))
	h.emu.Wait()
	if !h.emu.VCR.Readonly() || !h.cfg.VCRReadonly {
		t.Fatal("expected read-only mode")
	}
	if !strings.Contains(h.log.String(), "missing.m64") {
		t.Fatalf("expected error dialog, got %q", h.log.String())
	}

	script := filepath.Join(h.dir, "test.lua")
	os.WriteFile(script, []byte(`emu.atvi(function() end)`), 0o644)
	h.emu.RunRecent(RecentScript, script)
	if running := h.emu.Lua.Running(); len(running) != 1 || running[0] != script {
		t.Fatalf("expected %v, got %v", []string{script}, running)
	}
	if h.cfg.RecentScripts[0] != script {
		t.Fatalf("expected %v, got %v", script, h.cfg.RecentScripts)
	}
}

func TestSlotChangedUpdatesConfig(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.emu.Savestates.SetSlot(4); err != nil {
		t.Fatal(err)
	}
	if h.cfg.StateSlot != 4 {
		t.Fatalf("expected %v, got %v", 4, h.cfg.StateSlot)
	}
	h.start(t)
	if err := h.emu.Savestates.DoSlot(-1, savestates.Save); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.StatesDirectory, "TEST ROM.st4")); err != nil {
		t.Fatal(err)
	}
}

func TestOverlayVideo(t *testing.T) {
	video := plugin.NewNullVideo(4, 4, nil)
	overlay := image.NewRGBA(image.Rect(0, 0, 4, 4))
	red := color.RGBA{R: 0xff, A: 0xff}
	overlay.SetRGBA(1, 1, red)
	v := &overlayVideo{video, overlay}
	img := v.ReadScreen()
	if got := img.RGBAAt(1, 1); got != red {
		t.Fatalf("expected %v, got %v", red, got)
	}
	if got := img.RGBAAt(2, 2); got != (color.RGBA{}) {
		t.Fatalf("expected %v, got %v", color.RGBA{}, got)
	}
	if got := video.Framebuffer().RGBAAt(1, 1); got != (color.RGBA{}) {
		t.Fatal("overlay was drawn into the plugin's framebuffer")
	}
}

func TestExecutorOrder(t *testing.T) {
	var x Executor
	var mtx sync.Mutex
	var order []int
	for i := range 10 {
		x.InvokeAsync(func() {
			mtx.Lock()
			order = append(order, i)
			mtx.Unlock()
		})
	}
	x.Wait()
	if !slices.Equal(order, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}) {
		t.Fatalf("unexpected order %v", order)
	}
}
