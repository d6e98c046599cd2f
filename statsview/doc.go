// Package statsview serves runtime statistics of the emulator process over
// HTTP. It's only functional if built with the statsview build tag.
//
// After launch the graphs are available at
//
//	localhost:12664/debug/statsview
//
// and the pprof profiles at
//
//	localhost:12664/debug/pprof/
package statsview

const (
	Address = "localhost:12664"
	path    = "/debug/statsview"
)
