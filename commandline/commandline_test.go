package commandline

import (
	"bytes"
	"errors"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clktmr/mupen64/capture"
	"github.com/clktmr/mupen64/messenger"
	"github.com/clktmr/mupen64/movie"
)

func TestParse(t *testing.T) {
	tests := map[string]struct {
		args     []string
		expected Options
		err      bool
	}{
		"empty": {},
		"all": {
			args: []string{
				"--rom=foo.n64", "--lua=bar.lua", "--st=foo.st", "--movie=foo.m64",
				"--avi=foo.mp4", "--stop-capture-on-movie-end", "--stop-emu-on-movie-end",
			},
			expected: Options{
				ROM:     "foo.n64",
				Lua:     "bar.lua",
				State:   "foo.st",
				Movie:   "foo.m64",
				Capture: "foo.mp4",

				StopCaptureOnMovieEnd: true,
				StopEmuOnMovieEnd:     true,
			},
		},
		"separate values": {
			args:     []string{"-rom", "foo.n64", "-lua", "bar.lua"},
			expected: Options{ROM: "foo.n64", Lua: "bar.lua"},
		},
		"open with": {
			args:     []string{"foo.n64"},
			expected: Options{ROM: "foo.n64"},
		},
		"positional with flags": {
			args: []string{"--lua=bar.lua", "foo.n64"},
			err:  true,
		},
		"two positionals": {
			args: []string{"foo.n64", "bar.n64"},
			err:  true,
		},
		"unknown flag": {
			args: []string{"--fullscreen"},
			err:  true,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			o, err := Parse("mupen64", tc.args, io.Discard)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error, got %+v", o)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if *o != tc.expected {
				t.Fatalf("expected %+v, got %+v", tc.expected, *o)
			}
		})
	}
}

func TestParseString(t *testing.T) {
	tests := map[string]struct {
		line     string
		expected Options
	}{
		"spaced rom":  {`"/games/Super Mario 64.z64"`, Options{ROM: "/games/Super Mario 64.z64"}},
		"spaced flag": {`--rom="my rom.z64" --st=a.st`, Options{ROM: "my rom.z64", State: "a.st"}},
		"plain":       {`--movie=a.m64 --stop-emu-on-movie-end`, Options{Movie: "a.m64", StopEmuOnMovieEnd: true}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			o, err := ParseString("mupen64", tc.line)
			if err != nil {
				t.Fatal(err)
			}
			if *o != tc.expected {
				t.Fatalf("expected %+v, got %+v", tc.expected, *o)
			}
		})
	}
}

func TestParseArgsError(t *testing.T) {
	_, err := Parse("mupen64", []string{"a", "b"}, io.Discard)
	if !errors.Is(err, ErrArgs) {
		t.Fatalf("expected %v, got %v", ErrArgs, err)
	}
}

type recorder struct {
	mtx   sync.Mutex
	calls []string
	errs  map[string]error
}

func (r *recorder) call(name string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.calls = append(r.calls, name)
	return r.errs[name]
}

func (r *recorder) Calls() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return slices.Clone(r.calls)
}

type fakeEmu struct{ *recorder }

func (e fakeEmu) StartROM(path string) error  { return e.call("rom " + path) }
func (e fakeEmu) LoadState(path string) error { return e.call("st " + path) }
func (e fakeEmu) InvokeAsync(fn func())       { fn() }

type fakeScripts struct{ *recorder }

func (s fakeScripts) Start(path string) error { return s.call("lua " + path) }

type fakeVCR struct {
	*recorder
	capturing bool
}

func (v *fakeVCR) StartPlayback(path string) error { return v.call("movie " + path) }
func (v *fakeVCR) StartCapture(path string, flags capture.Flags) error {
	if flags&capture.GIF != 0 {
		return v.call("gif " + path)
	}
	return v.call("capture " + path)
}
func (v *fakeVCR) StopCapture() error { return v.call("stop capture") }
func (v *fakeVCR) IsCapturing() bool  { return v.capturing }

type harness struct {
	rec     *recorder
	vcr     *fakeVCR
	msgr    *messenger.Messenger
	startup *Startup
	log     bytes.Buffer
}

func newHarness(t *testing.T, opts Options) *harness {
	h := &harness{rec: &recorder{errs: map[string]error{}}}
	logger := log.New(&h.log, "", 0)
	h.vcr = &fakeVCR{recorder: h.rec}
	h.msgr = messenger.New(logger)
	h.startup = NewStartup(opts, fakeEmu{h.rec}, fakeScripts{h.rec}, h.vcr,
		func() { h.rec.call("quit") }, h.msgr, logger)
	h.startup.CaptureDelay = 10 * time.Millisecond
	t.Cleanup(h.startup.Close)
	return h
}

func waitCalls(t *testing.T, r *recorder, n int) []string {
	deadline := time.Now().Add(2 * time.Second)
	for {
		calls := r.Calls()
		if len(calls) >= n || time.Now().After(deadline) {
			return calls
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStartupOrder(t *testing.T) {
	tests := map[string]struct {
		opts     Options
		expected []string
	}{
		"nothing": {
			opts: Options{},
		},
		"rom only": {
			opts:     Options{ROM: "foo.n64"},
			expected: []string{"rom foo.n64"},
		},
		"st before lua": {
			opts:     Options{ROM: "foo.n64", State: "foo.st", Lua: "bar.lua"},
			expected: []string{"rom foo.n64", "st foo.st", "lua bar.lua"},
		},
		"everything": {
			opts:     Options{ROM: "foo.n64", State: "foo.st", Lua: "bar.lua", Movie: "foo.m64", Capture: "foo.mp4"},
			expected: []string{"rom foo.n64", "st foo.st", "lua bar.lua", "movie foo.m64", "capture foo.mp4"},
		},
		"gif": {
			opts:     Options{ROM: "foo.n64", Capture: "foo.GIF"},
			expected: []string{"rom foo.n64", "gif foo.GIF"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, tc.opts)
			h.msgr.Broadcast(messenger.AppReady{})
			if tc.opts.ROM != "" {
				h.msgr.Broadcast(messenger.EmuLaunchedChanged{Launched: true})
			}
			calls := waitCalls(t, h.rec, len(tc.expected))
			if !slices.Equal(calls, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, calls)
			}
		})
	}
}

func TestStartupErrorsContinue(t *testing.T) {
	h := newHarness(t, Options{State: "foo.st", Lua: "bar.lua", Movie: "foo.m64"})
	h.rec.errs["st foo.st"] = errors.New("no such state")
	h.msgr.Broadcast(messenger.EmuLaunchedChanged{Launched: true})
	expected := []string{"st foo.st", "lua bar.lua", "movie foo.m64"}
	if calls := h.rec.Calls(); !slices.Equal(calls, expected) {
		t.Fatalf("expected %v, got %v", expected, calls)
	}
	if !strings.Contains(h.log.String(), "no such state") {
		t.Fatalf("expected error to be logged, got %q", h.log.String())
	}
}

func TestCaptureCancelledOnStop(t *testing.T) {
	h := newHarness(t, Options{Capture: "foo.mp4"})
	h.startup.CaptureDelay = 50 * time.Millisecond
	h.msgr.Broadcast(messenger.EmuLaunchedChanged{Launched: true})
	h.msgr.Broadcast(messenger.EmuLaunchedChanged{Launched: false})
	time.Sleep(100 * time.Millisecond)
	if calls := h.rec.Calls(); len(calls) != 0 {
		t.Fatalf("expected no calls, got %v", calls)
	}
}

func TestMovieEnd(t *testing.T) {
	both := Options{StopCaptureOnMovieEnd: true, StopEmuOnMovieEnd: true}
	tests := map[string]struct {
		opts      Options
		capturing bool
		old       movie.Task
		new       movie.Task
		expected  []string
	}{
		"playback ended":        {both, true, movie.Playback, movie.Idle, []string{"stop capture", "quit"}},
		"not capturing":         {Options{StopCaptureOnMovieEnd: true}, false, movie.Playback, movie.Idle, nil},
		"capture only":          {Options{StopCaptureOnMovieEnd: true}, true, movie.Playback, movie.Idle, []string{"stop capture"}},
		"emu only":              {Options{StopEmuOnMovieEnd: true}, true, movie.Playback, movie.Idle, []string{"quit"}},
		"playback started":      {both, true, movie.StartPlaybackFromReset, movie.Playback, nil},
		"recording ended":       {both, true, movie.Recording, movie.Idle, nil},
		"playback to recording": {Options{StopEmuOnMovieEnd: true}, false, movie.Playback, movie.Recording, []string{"quit"}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, tc.opts)
			h.vcr.capturing = tc.capturing
			h.msgr.Broadcast(messenger.TaskChanged{Old: tc.old, New: tc.new})
			if calls := h.rec.Calls(); !slices.Equal(calls, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, calls)
			}
		})
	}
}
