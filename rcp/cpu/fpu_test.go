package cpu

import (
	"math"
	"testing"

	"github.com/clktmr/mupen64/frontend"
)

type dialog struct {
	text, caption string
	typ           frontend.DialogType
}

type dialogRecorder []dialog

func (r *dialogRecorder) ShowDialog(text, caption string, typ frontend.DialogType) {
	*r = append(*r, dialog{text, caption, typ})
}

func newFPU(enabled bool) (*FPU, *dialogRecorder) {
	var rec dialogRecorder
	return &FPU{
		CPU:            &CPU{PC: 0x80001234},
		EmulateCrashes: enabled,
		Dialogs:        &rec,
	}, &rec
}

func TestCheckInput(t *testing.T) {
	tests := map[string]struct {
		x        float64
		single   bool
		expected bool
	}{
		"zero":           {0, false, true},
		"negZero":        {math.Copysign(0, -1), false, true},
		"normal":         {1.5, false, true},
		"smallestNormal": {2.2250738585072014e-308, false, true},
		"denormal":       {5e-324, false, false},
		"negDenormal":    {-1e-310, false, false},
		"nan":            {math.NaN(), false, false},
		"inf":            {math.Inf(1), false, true},
		"single":         {1, true, true},
		"singleDenormal": {math.SmallestNonzeroFloat32, true, false},
		"singleNormal":   {1.1754943508222875e-38, true, true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f, rec := newFPU(true)
			var got bool
			if tc.single {
				got = CheckInput(f, float32(tc.x))
			} else {
				got = CheckInput(f, tc.x)
			}
			if got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
			if raised := f.CPU.Exceptions() != 0; raised == tc.expected {
				t.Fatalf("exception raised: %v", raised)
			}
			if !tc.expected {
				if f.CPU.Cause != 15<<2 {
					t.Fatalf("expected cause %#x, got %#x", 15<<2, f.CPU.Cause)
				}
				if len(*rec) != 1 || (*rec)[0].caption != "Core" || (*rec)[0].typ != frontend.Error {
					t.Fatalf("unexpected dialogs %v", *rec)
				}
			}
		})
	}
}

func TestCheckInputDisabled(t *testing.T) {
	f, rec := newFPU(false)
	if !CheckInput(f, 5e-324) || !CheckInput(f, math.NaN()) {
		t.Fatal("check failed with emulation disabled")
	}
	if len(*rec) != 0 || f.CPU.Exceptions() != 0 {
		t.Fatal("unexpected side effects")
	}
}

func TestFailMessage(t *testing.T) {
	tests := map[string]struct {
		cpu      CPU
		expected string
	}{
		"recompiler":  {CPU{PC: 0x80001234, InterpAddr: 0x80000000}, "Operation on denormal/nan: 5e-324\nPC = 0x80001234"},
		"interpreter": {CPU{PC: 0x80001234, InterpAddr: 0x12, Interpreter: true}, "Operation on denormal/nan: 5e-324\nPC = 0x0012"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var rec dialogRecorder
			cpu := tc.cpu
			f := &FPU{CPU: &cpu, EmulateCrashes: true, Dialogs: &rec}
			CheckInput(f, 5e-324)
			if len(rec) != 1 || rec[0].text != tc.expected {
				t.Fatalf("expected %q, got %v", tc.expected, rec)
			}
		})
	}
}

func TestCheckOutput(t *testing.T) {
	tests := map[string]struct {
		x        float64
		expected float64
		ok       bool
	}{
		"normal":      {3.25, 3.25, true},
		"denormal":    {5e-324, 0, true},
		"negDenormal": {-5e-324, math.Copysign(0, -1), true},
		"nan":         {math.NaN(), math.NaN(), false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f, _ := newFPU(true)
			x := tc.x
			if ok := CheckOutput(f, &x); ok != tc.ok {
				t.Fatalf("expected %v, got %v", tc.ok, ok)
			}
			if !tc.ok {
				if f.CPU.Cause != ExcFPE.Cause() {
					t.Fatalf("expected cause %#x, got %#x", ExcFPE.Cause(), f.CPU.Cause)
				}
				return
			}
			if math.Float64bits(x) != math.Float64bits(tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, x)
			}
		})
	}
}

func TestCheckOutputSingle(t *testing.T) {
	f, _ := newFPU(true)
	x := -float32(math.SmallestNonzeroFloat32)
	if !CheckOutput(f, &x) {
		t.Fatal("denormal output raised exception")
	}
	if math.Float32bits(x) != 0x8000_0000 {
		t.Fatalf("expected -0, got %v", x)
	}
}

func TestCheckConvert(t *testing.T) {
	tests := map[string]struct {
		x        float64
		mode     RoundingMode
		expected int32
		ok       bool
	}{
		"nearest":    {2.5, RoundNearest, 2, true},
		"trunc":      {-2.7, RoundZero, -2, true},
		"ceil":       {2.1, RoundCeil, 3, true},
		"floor":      {-2.1, RoundFloor, -3, true},
		"overflow":   {1e10, RoundZero, math.MinInt32, false},
		"underflow":  {-1e10, RoundZero, math.MinInt32, false},
		"nan":        {math.NaN(), RoundNearest, math.MinInt32, false},
		"upperBound": {2147483647, RoundZero, math.MaxInt32, true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f, rec := newFPU(true)
			got := ConvertToInt32(f, tc.x, tc.mode)
			if got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
			if ok := f.CheckConvert(); ok != tc.ok {
				t.Fatalf("expected %v, got %v", tc.ok, ok)
			}
			if !tc.ok && (len(*rec) != 1 || (*rec)[0].text != "Out-of-range float conversion\nPC = 0x80001234") {
				t.Fatalf("unexpected dialogs %v", *rec)
			}
			if f.Invalid() {
				t.Fatal("invalid flag not cleared")
			}
		})
	}
}

func TestConvertToInt64(t *testing.T) {
	f, _ := newFPU(false)
	if got := ConvertToInt64(f, 1e19, RoundZero); got != math.MinInt64 || !f.Invalid() {
		t.Fatalf("expected indefinite value, got %v", got)
	}
	f.ClearStatus()
	if got := ConvertToInt64(f, float32(-3.5), RoundNearest); got != -4 || f.Invalid() {
		t.Fatalf("expected -4, got %v", got)
	}
	if !f.CheckConvert() {
		t.Fatal("check failed with emulation disabled")
	}
}

func TestExcCode(t *testing.T) {
	if ExcFPE.String() != "Floating-Point" {
		t.Fatal(ExcFPE.String())
	}
	if CauseCode(15<<2) != ExcFPE {
		t.Fatal("wrong code")
	}
	if ExcCode(14).String() != "Reserved" {
		t.Fatal(ExcCode(14).String())
	}
	if PhysicalAddress(0xa400_0040) != 0x0400_0040 {
		t.Fatal("wrong physical address")
	}
}
