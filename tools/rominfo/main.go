// Package rominfo prints the header of N64 ROMs.
package rominfo

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/clktmr/mupen64/rom"
)

const usageString = `Print the header of N64 ROMs.

Usage: %s <rom>...

`

var flags = flag.NewFlagSet("rominfo", flag.ExitOnError)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "rominfo")
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
		r, err := rom.Load(path)
		if err != nil {
			log.Fatalln(err)
		}
		fmt.Printf("%s:\n", path)
		Print(os.Stdout, r)
	}
}

// Print writes a human readable description of r.
func Print(w io.Writer, r *rom.ROM) {
	checksum := "ok"
	if !r.VerifyChecksum() {
		checksum = "mismatch"
	}
	fmt.Fprintf(w, "\tname:     %s\n", r.Name())
	fmt.Fprintf(w, "\tcode:     %s\n", r.GameCode())
	fmt.Fprintf(w, "\tcountry:  %s (%d VIs/s)\n", r.CountryName(), r.VIsPerSecond())
	fmt.Fprintf(w, "\tversion:  1.%d\n", r.Version)
	fmt.Fprintf(w, "\tformat:   %v\n", r.Format)
	fmt.Fprintf(w, "\tsize:     %d MiB\n", len(r.Data)>>20)
	fmt.Fprintf(w, "\tboot:     %#08x\n", r.BootAddr)
	fmt.Fprintf(w, "\tcrc:      %08X %08X (%s)\n", r.CRC1, r.CRC2, checksum)
}
