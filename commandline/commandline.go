// Package commandline parses the emulator's startup flags and performs the
// requested startup actions once the emulator is up.
package commandline

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/buildkite/shellwords"
)

var ErrArgs = errors.New("commandline: unexpected arguments")

// Options are the startup actions requested on the command line. Empty
// paths request nothing.
type Options struct {
	ROM     string
	Lua     string
	State   string
	Movie   string
	Capture string

	StopCaptureOnMovieEnd bool
	StopEmuOnMovieEnd     bool
}

const usageString = `Usage: %s [flags] [rom]

`

// FlagSet returns a flag set that stores into o.
func (o *Options) FlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&o.ROM, "rom", "", "start the ROM at `path`")
	fs.StringVar(&o.Lua, "lua", "", "run the Lua script at `path` after launch")
	fs.StringVar(&o.State, "st", "", "load the savestate at `path` after launch")
	fs.StringVar(&o.Movie, "movie", "", "play the movie at `path` after launch")
	fs.StringVar(&o.Capture, "avi", "", "capture video to `path` shortly after launch")
	fs.BoolVar(&o.StopCaptureOnMovieEnd, "stop-capture-on-movie-end", false, "stop capturing when movie playback ends")
	fs.BoolVar(&o.StopEmuOnMovieEnd, "stop-emu-on-movie-end", false, "exit when movie playback ends")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), usageString, name)
		fs.PrintDefaults()
	}
	return fs
}

// Parse parses args, not including the program name. A single argument
// without any flags is the ROM, as passed by file managers.
func Parse(name string, args []string, output io.Writer) (*Options, error) {
	var o Options
	fs := o.FlagSet(name)
	if output != nil {
		fs.SetOutput(output)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch {
	case fs.NArg() == 0:
	case fs.NArg() == 1 && fs.NFlag() == 0:
		o.ROM = fs.Arg(0)
	default:
		return nil, fmt.Errorf("%w: %q", ErrArgs, fs.Args())
	}
	return &o, nil
}

// ParseString splits a raw command line with the platform's quoting rules
// and parses it.
func ParseString(name, line string) (*Options, error) {
	args, err := shellwords.Split(line)
	if err != nil {
		return nil, fmt.Errorf("commandline: %w", err)
	}
	return Parse(name, args, io.Discard)
}
