// Package movieinfo prints the header of .m64 movies.
package movieinfo

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/clktmr/mupen64/movie"
	"github.com/clktmr/mupen64/rcp/serial/joybus"
)

const usageString = `Print the header of .m64 movies.

Usage: %s [flags] <movie>...

`

var (
	flags = flag.NewFlagSet("movieinfo", flag.ExitOnError)

	inputs = flags.Int("inputs", 0, "also print the first `n` samples")
)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "movieinfo")
	flags.PrintDefaults()
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() < 1 {
		flags.Usage()
		os.Exit(1)
	}

	for _, path := range flags.Args() {
		m, err := movie.Load(path)
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Printf("%s:\n", path)
		Print(os.Stdout, m, *inputs)
	}
}

// Print writes a human readable description of m and its first n samples.
func Print(w io.Writer, m *movie.Movie, n int) {
	h := &m.Header
	fmt.Fprintf(w, "\tversion:     %d\n", h.Version)
	fmt.Fprintf(w, "\trecorded:    %v\n", time.Unix(int64(h.UID), 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "\tstart:       %v\n", h.StartFlags)
	fmt.Fprintf(w, "\tvis:         %d (%d/s)\n", h.VIs, h.VIsPerSecond)
	fmt.Fprintf(w, "\tsamples:     %d\n", len(m.Inputs))
	fmt.Fprintf(w, "\trerecords:   %d\n", h.Rerecords)
	fmt.Fprintf(w, "\tcontrollers:")
	for port := range joybus.Ports {
		if h.ControllerFlags.Present(port) {
			fmt.Fprintf(w, " %d", port+1)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "\trom:         %s (CRC %08X, country %c)\n",
		movie.String(h.ROMName[:]), h.ROMCRC, rune(h.ROMCountry))
	fmt.Fprintf(w, "\tplugins:     %s, %s, %s, %s\n",
		movie.String(h.VideoPlugin[:]), movie.String(h.AudioPlugin[:]),
		movie.String(h.InputPlugin[:]), movie.String(h.RSPPlugin[:]))
	fmt.Fprintf(w, "\tauthor:      %s\n", movie.String(h.Author[:]))
	fmt.Fprintf(w, "\tdescription: %s\n", movie.String(h.Description[:]))
	for i, s := range m.Inputs[:min(n, len(m.Inputs))] {
		fmt.Fprintf(w, "\t%6d: %v\n", i, s)
	}
}
