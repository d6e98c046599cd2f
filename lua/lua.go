// Package lua runs user scripts against the emulator.
//
// Each script gets its own Lua state and drawing context. Scripts register
// callbacks with the emu module, which are invoked from the emulation loop.
// A failing callback stops its script.
package lua

import (
	"errors"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"

	"github.com/clktmr/mupen64/lua/d2d"
	"github.com/clktmr/mupen64/movie"
	lua "github.com/yuin/gopher-lua"
)

var ErrStopped = errors.New("lua: script stopped")

// Host is the emulator as seen by scripts.
type Host interface {
	FrameCount() int
	Overlay() *image.RGBA
	InvokeAsync(fn func())
}

// Movie is the movie engine as seen by scripts.
type Movie interface {
	Task() movie.Task
	StartPlayback(path string) error
	Stop() error
	Readonly() bool
	SetReadonly(readonly bool)
	Path() string
	CurrentSample() int
}

type Environment struct {
	mu      sync.Mutex
	path    string
	state   *lua.LState
	draw    *d2d.Context
	host    Host
	movie   Movie
	logger  *log.Logger
	running bool

	atvi    []*lua.LFunction
	atinput []*lua.LFunction
	atstop  []*lua.LFunction
}

// NewEnvironment prepares a script environment. The script runs on Start.
func NewEnvironment(path string, host Host, mov Movie, logger *log.Logger) *Environment {
	if logger == nil {
		logger = log.Default()
	}
	e := &Environment{
		path:   path,
		state:  lua.NewState(),
		draw:   d2d.NewContext(host.Overlay(), logger),
		host:   host,
		movie:  mov,
		logger: logger,
	}
	e.draw.Register(e.state)
	e.state.SetGlobal("print", e.state.NewFunction(e.print))
	e.state.SetGlobal("emu", e.state.SetFuncs(e.state.NewTable(), map[string]lua.LGFunction{
		"atvi":        e.register(&e.atvi),
		"atinput":     e.register(&e.atinput),
		"atstop":      e.register(&e.atstop),
		"framecount":  e.frameCount,
		"samplecount": e.sampleCount,
		"print":       e.print,
	}))
	e.state.SetGlobal("movie", e.state.SetFuncs(e.state.NewTable(), map[string]lua.LGFunction{
		"playmovie":        e.playMovie,
		"stopmovie":        e.stopMovie,
		"get_readonly":     e.getReadonly,
		"set_readonly":     e.setReadonly,
		"getmoviefilename": e.movieFilename,
		"isreadonly":       e.getReadonly,
	}))
	return e
}

func (e *Environment) Path() string {
	return e.path
}

func (e *Environment) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start runs the script's top level chunk.
func (e *Environment) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.state.DoFile(e.path); err != nil {
		e.state.Close()
		return fmt.Errorf("lua: %w", err)
	}
	e.running = true
	return nil
}

// Stop runs the atstop callbacks and releases the script.
func (e *Environment) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.call(e.atstop)
	if e.running {
		e.close()
	}
}

func (e *Environment) close() {
	e.running = false
	e.draw.Reset()
	e.state.Close()
}

// AtVI runs the atvi callbacks.
func (e *Environment) AtVI() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.call(e.atvi)
}

// AtInput runs the atinput callbacks with the polled port.
func (e *Environment) AtInput(port int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.call(e.atinput, lua.LNumber(port))
}

// AtStop runs the atstop callbacks but keeps the script running.
func (e *Environment) AtStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.call(e.atstop)
}

func (e *Environment) call(fns []*lua.LFunction, args ...lua.LValue) {
	for _, fn := range fns {
		if !e.running {
			return
		}
		err := e.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
		if err != nil {
			e.logger.Printf("[Lua] %s: %v", e.path, err)
			e.close()
		}
	}
}

func (e *Environment) register(fns *[]*lua.LFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		*fns = append(*fns, L.CheckFunction(1))
		return 0
	}
}

func (e *Environment) print(L *lua.LState) int {
	args := make([]string, L.GetTop())
	for i := range args {
		args[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	e.logger.Printf("[Lua] %s", strings.Join(args, "\t"))
	return 0
}

func (e *Environment) frameCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.host.FrameCount()))
	return 1
}

func (e *Environment) sampleCount(L *lua.LState) int {
	if e.movie.Task() == movie.Idle {
		L.Push(lua.LNumber(-1))
		return 1
	}
	L.Push(lua.LNumber(e.movie.CurrentSample()))
	return 1
}

// Starting playback resets or loads a snapshot, which must not happen from
// within the emulation loop.
func (e *Environment) playMovie(L *lua.LState) int {
	path := L.CheckString(1)
	e.host.InvokeAsync(func() {
		if err := e.movie.StartPlayback(path); err != nil {
			e.logger.Printf("[Lua] %s: playmovie: %v", e.path, err)
		}
	})
	return 0
}

func (e *Environment) stopMovie(L *lua.LState) int {
	e.host.InvokeAsync(func() {
		if err := e.movie.Stop(); err != nil {
			e.logger.Printf("[Lua] %s: stopmovie: %v", e.path, err)
		}
	})
	return 0
}

func (e *Environment) getReadonly(L *lua.LState) int {
	L.Push(lua.LBool(e.movie.Readonly()))
	return 1
}

func (e *Environment) setReadonly(L *lua.LState) int {
	e.movie.SetReadonly(L.CheckBool(1))
	return 0
}

func (e *Environment) movieFilename(L *lua.LState) int {
	L.Push(lua.LString(e.movie.Path()))
	return 1
}
