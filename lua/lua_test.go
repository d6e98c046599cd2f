package lua

import (
	"bytes"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clktmr/mupen64/messenger"
	"github.com/clktmr/mupen64/movie"
	lua "github.com/yuin/gopher-lua"
)

type fakeHost struct {
	frames  int
	overlay *image.RGBA
}

func (h *fakeHost) FrameCount() int       { return h.frames }
func (h *fakeHost) Overlay() *image.RGBA  { return h.overlay }
func (h *fakeHost) InvokeAsync(fn func()) { fn() }

type fakeMovie struct {
	task     movie.Task
	played   string
	stopped  bool
	readonly bool
	path     string
	sample   int
}

func (m *fakeMovie) Task() movie.Task { return m.task }
func (m *fakeMovie) StartPlayback(path string) error {
	m.played = path
	m.task = movie.Playback
	return nil
}
func (m *fakeMovie) Stop() error {
	m.stopped = true
	m.task = movie.Idle
	return nil
}
func (m *fakeMovie) Readonly() bool            { return m.readonly }
func (m *fakeMovie) SetReadonly(readonly bool) { m.readonly = readonly }
func (m *fakeMovie) Path() string              { return m.path }
func (m *fakeMovie) CurrentSample() int        { return m.sample }

type harness struct {
	host  *fakeHost
	movie *fakeMovie
	msgr  *messenger.Messenger
	log   bytes.Buffer
	dir   string
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		host:  &fakeHost{overlay: image.NewRGBA(image.Rect(0, 0, 16, 16))},
		movie: &fakeMovie{},
		dir:   t.TempDir(),
	}
	h.msgr = messenger.New(log.New(&h.log, "", 0))
	return h
}

func (h *harness) logger() *log.Logger {
	return log.New(&h.log, "", 0)
}

func (h *harness) script(t *testing.T, name, src string) string {
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func global(e *Environment, name string) lua.LValue {
	return e.state.GetGlobal(name)
}

func TestCallbacks(t *testing.T) {
	h := newHarness(t)
	path := h.script(t, "count.lua", `
		vis, inputs, stops, lastport = 0, 0, 0, -1
		emu.atvi(function() vis = vis + 1 end)
		emu.atinput(function(port) inputs = inputs + 1; lastport = port end)
		emu.atstop(function() stops = stops + 1 end)
	`)
	e := NewEnvironment(path, h.host, h.movie, h.logger())
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		e.AtVI()
	}
	e.AtInput(2)
	e.AtStop()

	expected := map[string]lua.LValue{
		"vis": lua.LNumber(3), "inputs": lua.LNumber(1),
		"lastport": lua.LNumber(2), "stops": lua.LNumber(1),
	}
	for name, v := range expected {
		if got := global(e, name); got != v {
			t.Fatalf("%s: expected %v, got %v", name, v, got)
		}
	}
	if !e.Running() {
		t.Fatal("expected script to keep running")
	}
	e.Stop()
	if e.Running() {
		t.Fatal("expected script to be stopped")
	}
}

func TestEmuModule(t *testing.T) {
	h := newHarness(t)
	h.host.frames = 42
	path := h.script(t, "emu.lua", `
		frames = emu.framecount()
		idle = emu.samplecount()
		emu.print("hello", 1, true)
		print("world")
	`)
	e := NewEnvironment(path, h.host, h.movie, h.logger())
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	if got := global(e, "frames"); got != lua.LNumber(42) {
		t.Fatalf("expected %v, got %v", 42, got)
	}
	if got := global(e, "idle"); got != lua.LNumber(-1) {
		t.Fatalf("expected %v, got %v", -1, got)
	}
	if !strings.Contains(h.log.String(), "[Lua] hello\t1\ttrue") {
		t.Fatalf("expected printed line, got %q", h.log.String())
	}
	if !strings.Contains(h.log.String(), "[Lua] world") {
		t.Fatalf("expected printed line, got %q", h.log.String())
	}
}

func TestMovieModule(t *testing.T) {
	h := newHarness(t)
	h.movie.path = "current.m64"
	h.movie.sample = 7
	path := h.script(t, "movie.lua", `
		name = movie.getmoviefilename()
		movie.set_readonly(true)
		ro = movie.get_readonly()
		ro2 = movie.isreadonly()
		movie.playmovie("other.m64")
		sample = emu.samplecount()
		movie.stopmovie()
	`)
	e := NewEnvironment(path, h.host, h.movie, h.logger())
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	if got := global(e, "name"); got != lua.LString("current.m64") {
		t.Fatalf("expected %v, got %v", "current.m64", got)
	}
	if got := global(e, "ro"); got != lua.LTrue {
		t.Fatalf("expected %v, got %v", lua.LTrue, got)
	}
	if got := global(e, "ro2"); got != lua.LTrue {
		t.Fatalf("expected %v, got %v", lua.LTrue, got)
	}
	if got := global(e, "sample"); got != lua.LNumber(7) {
		t.Fatalf("expected %v, got %v", 7, got)
	}
	if h.movie.played != "other.m64" {
		t.Fatalf("expected %v, got %v", "other.m64", h.movie.played)
	}
	if !h.movie.stopped {
		t.Fatal("expected movie to be stopped")
	}
}

func TestCallbackErrorStopsScript(t *testing.T) {
	h := newHarness(t)
	path := h.script(t, "fail.lua", `emu.atvi(function() error("boom") end)`)
	m := NewManager(h.host, h.movie, h.msgr, h.logger())
	if err := m.Start(path); err != nil {
		t.Fatal(err)
	}
	m.AtVI()
	if running := m.Running(); len(running) != 0 {
		t.Fatalf("expected no running scripts, got %v", running)
	}
	if !strings.Contains(h.log.String(), "boom") {
		t.Fatalf("expected error to be logged, got %q", h.log.String())
	}
}

func TestManager(t *testing.T) {
	h := newHarness(t)
	var started []string
	messenger.Subscribe(h.msgr, func(msg messenger.ScriptStarted) {
		started = append(started, msg.Path)
	})
	m := NewManager(h.host, h.movie, h.msgr, h.logger())

	a := h.script(t, "a.lua", `stopped = false; emu.atstop(function() stopped = true end)`)
	b := h.script(t, "b.lua", `emu.atvi(function() d2d.fill_rectangle(0, 0, 4, 4, 1, 0, 0, 1) end)`)
	if err := m.Start(a); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(b); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(filepath.Join(h.dir, "missing.lua")); err == nil {
		t.Fatal("expected error")
	}
	bad := h.script(t, "bad.lua", `this is not lua`)
	if err := m.Start(bad); err == nil {
		t.Fatal("expected error")
	}
	if len(started) != 2 || started[0] != a || started[1] != b {
		t.Fatalf("expected %v, got %v", []string{a, b}, started)
	}

	h.host.overlay.Pix[len(h.host.overlay.Pix)-1] = 0xff
	m.AtVI()
	if got := h.host.overlay.RGBAAt(1, 1); got.R != 0xff || got.A != 0xff {
		t.Fatalf("expected red, got %v", got)
	}
	if h.host.overlay.Pix[len(h.host.overlay.Pix)-1] != 0 {
		t.Fatal("expected overlay to be cleared")
	}

	h.msgr.Broadcast(messenger.EmuStopping{})
	envs := m.environments()
	if got := global(envs[0], "stopped"); got != lua.LTrue {
		t.Fatalf("expected %v, got %v", lua.LTrue, got)
	}

	m.Stop(a)
	if running := m.Running(); len(running) != 1 || running[0] != b {
		t.Fatalf("expected %v, got %v", []string{b}, running)
	}
	m.StopAll()
	if running := m.Running(); len(running) != 0 {
		t.Fatalf("expected no running scripts, got %v", running)
	}
}
