package cpu

import (
	"errors"
	"math"
	"unsafe"

	"golang.org/x/exp/constraints"
)

var (
	// ErrFPE is returned if an instruction raised a floating-point
	// exception and didn't write its destination.
	ErrFPE = errors.New("cpu: floating-point exception")

	ErrReservedInstruction = errors.New("cpu: reserved instruction")
)

// FPR is the COP1 register file. Single precision and 32-bit integer values
// live in the low word of a register.
type FPR [32]uint64

func (r *FPR) S(i int) float32       { return math.Float32frombits(uint32(r[i])) }
func (r *FPR) D(i int) float64       { return math.Float64frombits(r[i]) }
func (r *FPR) W(i int) int32         { return int32(uint32(r[i])) }
func (r *FPR) L(i int) int64         { return int64(r[i]) }
func (r *FPR) SetS(i int, x float32) { r.setLo(i, math.Float32bits(x)) }
func (r *FPR) SetD(i int, x float64) { r[i] = math.Float64bits(x) }
func (r *FPR) SetW(i int, x int32)   { r.setLo(i, uint32(x)) }
func (r *FPR) SetL(i int, x int64)   { r[i] = uint64(x) }

func (r *FPR) setLo(i int, v uint32) {
	r[i] = r[i]&^0xffff_ffff | uint64(v)
}

func load[T constraints.Float](r *FPR, i int) T {
	var x T
	if unsafe.Sizeof(x) == 4 {
		return T(r.S(i))
	}
	return T(r.D(i))
}

func store[T constraints.Float](r *FPR, i int, x T) {
	if unsafe.Sizeof(x) == 4 {
		r.SetS(i, float32(x))
	} else {
		r.SetD(i, float64(x))
	}
}

// Fmt is the fmt field of a COP1 instruction.
type Fmt uint8

const (
	FmtS Fmt = 16
	FmtD Fmt = 17
	FmtW Fmt = 20
	FmtL Fmt = 21
)

// Funct is the function field of a COP1 instruction.
type Funct uint8

const (
	FunctAdd    Funct = 0x00
	FunctSub    Funct = 0x01
	FunctMul    Funct = 0x02
	FunctDiv    Funct = 0x03
	FunctSqrt   Funct = 0x04
	FunctRoundL Funct = 0x08
	FunctTruncL Funct = 0x09
	FunctCeilL  Funct = 0x0a
	FunctFloorL Funct = 0x0b
	FunctRoundW Funct = 0x0c
	FunctTruncW Funct = 0x0d
	FunctCeilW  Funct = 0x0e
	FunctFloorW Funct = 0x0f
	FunctCvtS   Funct = 0x20
	FunctCvtD   Funct = 0x21
	FunctCvtW   Funct = 0x24
	FunctCvtL   Funct = 0x25
)

const opCOP1 = 0x11

// Step decodes and executes a COP1 arithmetic or conversion instruction.
func (f *FPU) Step(inst uint32) error {
	if inst>>26 != opCOP1 {
		return ErrReservedInstruction
	}
	format := Fmt(inst >> 21 & 31)
	ft := int(inst >> 16 & 31)
	fs := int(inst >> 11 & 31)
	fd := int(inst >> 6 & 31)
	return f.Execute(Funct(inst&63), format, fd, fs, ft)
}

// Execute runs a COP1 instruction on the register file. Operands are
// checked before and results after the operation, which leaves fd
// unchanged if an exception was raised.
func (f *FPU) Execute(funct Funct, format Fmt, fd, fs, ft int) error {
	switch format {
	case FmtS:
		return execute[float32](f, funct, fd, fs, ft)
	case FmtD:
		return execute[float64](f, funct, fd, fs, ft)
	case FmtW:
		return f.convertInt(funct, fd, float64(f.Regs.W(fs)))
	case FmtL:
		return f.convertInt(funct, fd, float64(f.Regs.L(fs)))
	}
	return ErrReservedInstruction
}

// RoundingMode returns the rounding mode selected in FCR31.
func (f *FPU) RoundingMode() RoundingMode {
	return RoundingMode(f.FCR31 & 3)
}

func execute[T constraints.Float](f *FPU, funct Funct, fd, fs, ft int) error {
	a := load[T](&f.Regs, fs)
	switch funct {
	case FunctAdd, FunctSub, FunctMul, FunctDiv:
		b := load[T](&f.Regs, ft)
		if !CheckInput(f, a) || !CheckInput(f, b) {
			return ErrFPE
		}
		var r T
		switch funct {
		case FunctAdd:
			r = a + b
		case FunctSub:
			r = a - b
		case FunctMul:
			r = a * b
		case FunctDiv:
			r = a / b
		}
		return output(f, fd, r)
	case FunctSqrt:
		if !CheckInput(f, a) {
			return ErrFPE
		}
		return output(f, fd, T(math.Sqrt(float64(a))))
	case FunctCvtS, FunctCvtD:
		if (funct == FunctCvtS) == (unsafe.Sizeof(a) == 4) {
			return ErrReservedInstruction
		}
		if !CheckInput(f, a) {
			return ErrFPE
		}
		if funct == FunctCvtS {
			return output(f, fd, float32(a))
		}
		return output(f, fd, float64(a))
	}

	mode, long, ok := conversion(funct, f.RoundingMode())
	if !ok {
		return ErrReservedInstruction
	}
	if !CheckInput(f, a) {
		return ErrFPE
	}
	if long {
		r := ConvertToInt64(f, a, mode)
		if !f.CheckConvert() {
			return ErrFPE
		}
		f.Regs.SetL(fd, r)
	} else {
		r := ConvertToInt32(f, a, mode)
		if !f.CheckConvert() {
			return ErrFPE
		}
		f.Regs.SetW(fd, r)
	}
	return nil
}

func output[T constraints.Float](f *FPU, fd int, r T) error {
	if !CheckOutput(f, &r) {
		return ErrFPE
	}
	store(&f.Regs, fd, r)
	return nil
}

// conversion returns the rounding and target size of a float to integer
// conversion.
func conversion(funct Funct, current RoundingMode) (mode RoundingMode, long bool, ok bool) {
	switch funct {
	case FunctRoundL, FunctRoundW:
		mode = RoundNearest
	case FunctTruncL, FunctTruncW:
		mode = RoundZero
	case FunctCeilL, FunctCeilW:
		mode = RoundCeil
	case FunctFloorL, FunctFloorW:
		mode = RoundFloor
	case FunctCvtL, FunctCvtW:
		mode = current
	default:
		return 0, false, false
	}
	long = funct == FunctCvtL || funct >= FunctRoundL && funct <= FunctFloorL
	return mode, long, true
}

// convertInt converts an integer register to a float format.
func (f *FPU) convertInt(funct Funct, fd int, x float64) error {
	switch funct {
	case FunctCvtS:
		return output(f, fd, float32(x))
	case FunctCvtD:
		return output(f, fd, x)
	}
	return ErrReservedInstruction
}
