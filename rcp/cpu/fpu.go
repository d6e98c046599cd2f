package cpu

import (
	"fmt"
	"math"
	"strconv"
	"unsafe"

	"golang.org/x/exp/constraints"

	"github.com/clktmr/mupen64/frontend"
)

// Largest subnormal values. Anything with a smaller magnitude, except zero,
// traps on the N64's FPU.
const (
	LargestDenormalFloat32 = 1.1754942106924411e-38  // (1 << 23) - 1
	LargestDenormalFloat64 = 2.225073858507201e-308 // (1 << 52) - 1
)

const statusInvalid = 1 << 0

// FPU wraps COP1 instructions with checks that reproduce the floating-point
// exceptions of the real hardware. Checks only apply if EmulateCrashes is set.
type FPU struct {
	CPU            *CPU
	EmulateCrashes bool
	Dialogs        frontend.Dialogs

	Regs  FPR
	FCR31 uint32

	status uint32 // sticky host status flags
}

func largestDenormal[T constraints.Float](x T) float64 {
	if unsafe.Sizeof(x) == 4 {
		return float64(float32(LargestDenormalFloat32))
	}
	return LargestDenormalFloat64
}

func formatFloat[T constraints.Float](x T) string {
	return strconv.FormatFloat(float64(x), 'g', -1, 64)
}

// CheckInput must be called with every operand before a COP1 operation. If it
// returns false an exception was raised and the operation must not be
// executed.
func CheckInput[T constraints.Float](f *FPU, x T) bool {
	if f.EmulateCrashes && !(math.Abs(float64(x)) > largestDenormal(x)) && x != 0 {
		f.fail("Operation on denormal/nan: " + formatFloat(x))
		return false
	}
	return true
}

// CheckOutput must be called with the result of a COP1 operation. NaN raises
// an exception and returns false. Denormal results are flushed to zero,
// keeping their sign.
func CheckOutput[T constraints.Float](f *FPU, x *T) bool {
	if f.EmulateCrashes && !(math.Abs(float64(*x)) > largestDenormal(*x)) {
		if math.IsNaN(float64(*x)) {
			f.fail("Float operation resulted in nan")
			return false
		}
		*x = T(math.Copysign(0, float64(*x)))
	}
	return true
}

// CheckConvert must be called after a conversion to an integer format. It
// raises an exception if the conversion was invalid and clears the invalid
// flag.
func (f *FPU) CheckConvert() bool {
	if !f.EmulateCrashes {
		return true
	}
	invalid := f.status&statusInvalid != 0
	f.status &^= statusInvalid
	if invalid {
		f.fail("Out-of-range float conversion")
		return false
	}
	return true
}

// Invalid reports if the invalid operation flag is set.
func (f *FPU) Invalid() bool {
	return f.status&statusInvalid != 0
}

// ClearStatus resets all sticky flags.
func (f *FPU) ClearStatus() {
	f.status = 0
}

func (f *FPU) fail(msg string) {
	text := fmt.Sprintf("%s\nPC = 0x%04x", msg, f.CPU.Addr())
	if f.Dialogs != nil {
		f.Dialogs.ShowDialog(text, "Core", frontend.Error)
	}
	f.CPU.RaiseException(ExcFPE)
}

// RoundingMode is the rounding applied when converting to an integer.
type RoundingMode uint8

const (
	RoundNearest RoundingMode = iota // ties to even
	RoundZero
	RoundCeil
	RoundFloor
)

func (m RoundingMode) round(x float64) float64 {
	switch m {
	case RoundZero:
		return math.Trunc(x)
	case RoundCeil:
		return math.Ceil(x)
	case RoundFloor:
		return math.Floor(x)
	}
	return math.RoundToEven(x)
}

// ConvertToInt32 converts x like the host FPU would. NaN and out of range
// values set the invalid flag and return the integer indefinite value.
func ConvertToInt32[T constraints.Float](f *FPU, x T, mode RoundingMode) int32 {
	r := mode.round(float64(x))
	if math.IsNaN(r) || r < math.MinInt32 || r > math.MaxInt32 {
		f.status |= statusInvalid
		return math.MinInt32
	}
	return int32(r)
}

// ConvertToInt64 is the 64-bit variant of [ConvertToInt32].
func ConvertToInt64[T constraints.Float](f *FPU, x T, mode RoundingMode) int64 {
	r := mode.round(float64(x))
	if math.IsNaN(r) || r < math.MinInt64 || r >= -math.MinInt64 {
		f.status |= statusInvalid
		return math.MinInt64
	}
	return int64(r)
}
