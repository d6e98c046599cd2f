//go:build debug

package debug

import "fmt"

// Guard more complex assertions (i.e. anything that could panic) with `if
// debug.Enabled{...}`, otherwise they can't be removed in release builds.
const Enabled = true

func Assert(b bool, message string) {
	if !b {
		panic(message)
	}
}

func AssertErrNil(err error) {
	if err != nil {
		panic(err)
	}
}

func AssertRange(v, min, max float64, name string) {
	if !(v >= min && v <= max) {
		panic(fmt.Sprintf("%s out of range [%v, %v]: %v", name, min, max, v))
	}
}
