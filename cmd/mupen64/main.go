// Mupen64 runs an N64 ROM headless, optionally driven by a savestate, a Lua
// script and a movie given on the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/clktmr/mupen64/commandline"
	"github.com/clktmr/mupen64/config"
	"github.com/clktmr/mupen64/emu"
	"github.com/clktmr/mupen64/frontend"
	"github.com/clktmr/mupen64/messenger"
	"github.com/clktmr/mupen64/plugin"
	"github.com/clktmr/mupen64/statsview"
)

func must[T any](ret T, err error) T {
	if err != nil {
		log.Fatalln(err)
	}
	return ret
}

func main() {
	log.Default().SetFlags(0)

	opts, err := commandline.Parse("mupen64", os.Args[1:], nil)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	msgr := messenger.New(nil)
	cfgPath := must(config.Path())
	cfg := must(config.Load(cfgPath, msgr))

	fe := &frontend.Headless{SilentMode: cfg.SilentMode}
	e := emu.New(emu.Options{
		Config:    cfg,
		Plugins:   plugin.NewNullSet(fe),
		Frontend:  fe,
		Messenger: msgr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startup := commandline.NewStartup(*opts, e, e.Lua, e.VCR, stop, msgr, nil)
	startup.CaptureDelay = time.Duration(cfg.CaptureDelayMS) * time.Millisecond
	defer startup.Close()

	if statsview.Available() {
		statsview.Launch(os.Stderr)
	}

	msgr.Broadcast(messenger.AppReady{})
	if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Println(err)
	}

	e.Wait()
	if e.Launched() {
		if err := e.Stop(); err != nil {
			log.Println(err)
		}
	}
	if err := cfg.Save(cfgPath, msgr); err != nil {
		log.Println(err)
	}
}
