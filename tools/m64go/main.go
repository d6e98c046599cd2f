package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/clktmr/mupen64/tools/movieinfo"
	"github.com/clktmr/mupen64/tools/rominfo"
	"github.com/clktmr/mupen64/tools/sdcard"
)

const usageString = `m64go is a tool for working with mupen64 files.

Usage:

	%s <command> [arguments]

The commands are:

	sdcard    create and inspect SD card images
	movieinfo print the header of .m64 movies
	rominfo   print the header of ROMs
`

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), usageString, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	log.Default().SetFlags(0)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "sdcard":
		sdcard.Main(flag.Args())
	case "movieinfo":
		movieinfo.Main(flag.Args())
	case "rominfo":
		rominfo.Main(flag.Args())
	default:
		fmt.Fprintf(flag.CommandLine.Output(), "unknown command: %s\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}
}
