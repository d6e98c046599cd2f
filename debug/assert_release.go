//go:build !debug

// Package debug provides assertions that can be enabled with the debug build
// tag or will otherwise compile to no-ops.
//
// They are used on paths that run once per emulated instruction or draw call,
// where regular error handling would be too expensive.
package debug

// Guard more complex assertions (i.e. anything that could panic) with `if
// debug.Enabled{...}`, otherwise they can't be removed in release builds.
const Enabled = false

// Assert panics if b is false.
func Assert(b bool, message string) {}

// AssertErrNil panics if err is not nil.
func AssertErrNil(err error) {}

// AssertRange panics if v is not within [min, max] or NaN.
func AssertRange(v, min, max float64, name string) {}
