package cpu

import (
	"errors"
	"math"
	"testing"
)

const sentinel = 0x0123_4567_89ab_cdef

func setFloat(f *FPU, format Fmt, i int, x float64) {
	if format == FmtS {
		f.Regs.SetS(i, float32(x))
	} else {
		f.Regs.SetD(i, x)
	}
}

func TestExecute(t *testing.T) {
	tests := map[string]struct {
		funct    Funct
		format   Fmt
		a, b     float64
		result   Fmt
		expected float64
	}{
		"addS":  {FunctAdd, FmtS, 1.5, 2, FmtS, 3.5},
		"subD":  {FunctSub, FmtD, 1, 4, FmtD, -3},
		"mulS":  {FunctMul, FmtS, 3, -2, FmtS, -6},
		"divD":  {FunctDiv, FmtD, 1, 4, FmtD, 0.25},
		"sqrtS": {FunctSqrt, FmtS, 9, 0, FmtS, 3},
		"sqrtD": {FunctSqrt, FmtD, 2, 0, FmtD, math.Sqrt2},
		"cvtDS": {FunctCvtD, FmtS, 1.5, 0, FmtD, 1.5},
		"cvtSD": {FunctCvtS, FmtD, 2.5, 0, FmtS, 2.5},
		"flush": {FunctMul, FmtD, 1e-300, 1e-10, FmtD, 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f, rec := newFPU(true)
			setFloat(f, tc.format, 1, tc.a)
			setFloat(f, tc.format, 2, tc.b)
			if err := f.Execute(tc.funct, tc.format, 3, 1, 2); err != nil {
				t.Fatal(err)
			}
			got := f.Regs.D(3)
			if tc.result == FmtS {
				got = float64(f.Regs.S(3))
			}
			if got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
			if f.CPU.Exceptions() != 0 || len(*rec) != 0 {
				t.Fatalf("unexpected exception, dialogs %v", *rec)
			}
		})
	}
}

func TestExecuteConvert(t *testing.T) {
	tests := map[string]struct {
		funct    Funct
		format   Fmt
		fcr31    uint32
		x        float64
		expected int64
	}{
		"roundW":     {FunctRoundW, FmtS, 0, 2.5, 2},
		"truncW":     {FunctTruncW, FmtD, 0, -2.7, -2},
		"ceilW":      {FunctCeilW, FmtS, 0, 2.25, 3},
		"floorW":     {FunctFloorW, FmtD, 0, 2.9, 2},
		"roundL":     {FunctRoundL, FmtD, 0, 1e12 + 0.5, 1e12},
		"truncL":     {FunctTruncL, FmtS, 0, -3.5, -3},
		"ceilL":      {FunctCeilL, FmtD, 0, -2.5, -2},
		"floorL":     {FunctFloorL, FmtD, 0, -2.1, -3},
		"cvtWZero":   {FunctCvtW, FmtD, uint32(RoundZero), 2.9, 2},
		"cvtWNear":   {FunctCvtW, FmtS, uint32(RoundNearest), 3.5, 4},
		"cvtLFloor":  {FunctCvtL, FmtD, uint32(RoundFloor), -0.5, -1},
		"cvtLCeil":   {FunctCvtL, FmtS, uint32(RoundCeil), 0.25, 1},
		"roundWNeg":  {FunctRoundW, FmtD, 0, -1.5, -2},
		"truncWZero": {FunctTruncW, FmtS, 0, 0, 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f, _ := newFPU(true)
			f.FCR31 = tc.fcr31
			setFloat(f, tc.format, 1, tc.x)
			f.Regs[3] = sentinel
			if err := f.Execute(tc.funct, tc.format, 3, 1, 0); err != nil {
				t.Fatal(err)
			}
			var got int64
			switch tc.funct {
			case FunctRoundL, FunctTruncL, FunctCeilL, FunctFloorL, FunctCvtL:
				got = f.Regs.L(3)
			default:
				got = int64(f.Regs.W(3))
				if hi := f.Regs[3] >> 32; hi != sentinel>>32 {
					t.Fatalf("upper word changed to %#x", hi)
				}
			}
			if got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestExecuteFromInt(t *testing.T) {
	f, _ := newFPU(true)
	f.Regs.SetW(1, -7)
	f.Regs.SetL(2, 1<<40)
	if err := f.Execute(FunctCvtS, FmtW, 3, 1, 0); err != nil {
		t.Fatal(err)
	}
	if got := f.Regs.S(3); got != -7 {
		t.Fatalf("expected %v, got %v", -7, got)
	}
	if err := f.Execute(FunctCvtD, FmtL, 4, 2, 0); err != nil {
		t.Fatal(err)
	}
	if got := f.Regs.D(4); got != 1<<40 {
		t.Fatalf("expected %v, got %v", 1<<40, got)
	}
}

func TestExecuteDenormal(t *testing.T) {
	functs := map[string]Funct{
		"add":    FunctAdd,
		"sub":    FunctSub,
		"mul":    FunctMul,
		"div":    FunctDiv,
		"sqrt":   FunctSqrt,
		"cvtD":   FunctCvtD,
		"cvtW":   FunctCvtW,
		"cvtL":   FunctCvtL,
		"roundW": FunctRoundW,
		"truncW": FunctTruncW,
		"ceilW":  FunctCeilW,
		"floorW": FunctFloorW,
		"roundL": FunctRoundL,
		"truncL": FunctTruncL,
		"ceilL":  FunctCeilL,
		"floorL": FunctFloorL,
	}
	for name, funct := range functs {
		t.Run(name, func(t *testing.T) {
			f, rec := newFPU(true)
			f.Regs.SetS(1, math.SmallestNonzeroFloat32)
			f.Regs.SetS(2, 1)
			f.Regs[3] = sentinel
			if err := f.Execute(funct, FmtS, 3, 1, 2); !errors.Is(err, ErrFPE) {
				t.Fatalf("expected %v, got %v", ErrFPE, err)
			}
			if f.Regs[3] != sentinel {
				t.Fatalf("destination changed to %#x", f.Regs[3])
			}
			if f.CPU.Cause != 15<<2 {
				t.Fatalf("expected cause %#x, got %#x", 15<<2, f.CPU.Cause)
			}
			if len(*rec) != 1 {
				t.Fatalf("unexpected dialogs %v", *rec)
			}
		})
	}
}

func TestExecuteDenormalSecondOperand(t *testing.T) {
	f, _ := newFPU(true)
	f.Regs.SetD(1, 1)
	f.Regs.SetD(2, 5e-324)
	f.Regs[3] = sentinel
	if err := f.Execute(FunctAdd, FmtD, 3, 1, 2); !errors.Is(err, ErrFPE) {
		t.Fatalf("expected %v, got %v", ErrFPE, err)
	}
	if f.Regs[3] != sentinel || f.CPU.Cause != ExcFPE.Cause() {
		t.Fatalf("destination %#x, cause %#x", f.Regs[3], f.CPU.Cause)
	}
}

func TestExecuteInvalidResult(t *testing.T) {
	tests := map[string]struct {
		funct  Funct
		format Fmt
		a, b   float64
	}{
		"sqrtNeg":  {FunctSqrt, FmtD, -1, 0},
		"infMinus": {FunctSub, FmtS, math.Inf(1), math.Inf(1)},
		"zeroDiv":  {FunctDiv, FmtD, 0, 0},
		"truncBig": {FunctTruncW, FmtD, 3e9, 0},
		"cvtLInf":  {FunctCvtL, FmtD, math.Inf(-1), 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f, _ := newFPU(true)
			setFloat(f, tc.format, 1, tc.a)
			setFloat(f, tc.format, 2, tc.b)
			f.Regs[3] = sentinel
			if err := f.Execute(tc.funct, tc.format, 3, 1, 2); !errors.Is(err, ErrFPE) {
				t.Fatalf("expected %v, got %v", ErrFPE, err)
			}
			if f.Regs[3] != sentinel {
				t.Fatalf("destination changed to %#x", f.Regs[3])
			}
			if f.CPU.Cause != ExcFPE.Cause() {
				t.Fatalf("expected cause %#x, got %#x", ExcFPE.Cause(), f.CPU.Cause)
			}
		})
	}
}

func TestExecuteDisabled(t *testing.T) {
	f, rec := newFPU(false)
	f.Regs.SetD(1, 5e-324)
	f.Regs.SetD(2, 0)
	if err := f.Execute(FunctAdd, FmtD, 3, 1, 2); err != nil {
		t.Fatal(err)
	}
	if got := f.Regs.D(3); got != 5e-324 {
		t.Fatalf("expected %v, got %v", 5e-324, got)
	}
	f.Regs.SetD(1, 3e9)
	if err := f.Execute(FunctTruncW, FmtD, 4, 1, 0); err != nil {
		t.Fatal(err)
	}
	if got := f.Regs.W(4); got != math.MinInt32 {
		t.Fatalf("expected %v, got %v", math.MinInt32, got)
	}
	if f.CPU.Exceptions() != 0 || len(*rec) != 0 {
		t.Fatalf("unexpected exception, dialogs %v", *rec)
	}
}

func TestExecuteReserved(t *testing.T) {
	tests := map[string]struct {
		funct  Funct
		format Fmt
	}{
		"cvtSS":  {FunctCvtS, FmtS},
		"cvtDD":  {FunctCvtD, FmtD},
		"sqrtW":  {FunctSqrt, FmtW},
		"addL":   {FunctAdd, FmtL},
		"badFmt": {FunctAdd, 3},
		"funct":  {0x3f, FmtS},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f, _ := newFPU(true)
			if err := f.Execute(tc.funct, tc.format, 3, 1, 2); !errors.Is(err, ErrReservedInstruction) {
				t.Fatalf("expected %v, got %v", ErrReservedInstruction, err)
			}
		})
	}
}

func TestStep(t *testing.T) {
	f, _ := newFPU(true)
	f.Regs.SetS(1, 1.25)
	f.Regs.SetS(2, 2)
	// mul.s $f3, $f1, $f2
	inst := uint32(opCOP1)<<26 | uint32(FmtS)<<21 | 2<<16 | 1<<11 | 3<<6 | uint32(FunctMul)
	if err := f.Step(inst); err != nil {
		t.Fatal(err)
	}
	if got := f.Regs.S(3); got != 2.5 {
		t.Fatalf("expected %v, got %v", 2.5, got)
	}
	if err := f.Step(0); !errors.Is(err, ErrReservedInstruction) {
		t.Fatalf("expected %v, got %v", ErrReservedInstruction, err)
	}
}
