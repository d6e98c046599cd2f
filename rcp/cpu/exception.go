package cpu

// ExcCode is the exception code stored in bits 2 to 6 of the Cause register.
type ExcCode uint32

const (
	ExcInterrupt ExcCode = 0
	ExcSyscall   ExcCode = 8
	ExcBreak     ExcCode = 9
	ExcTrap      ExcCode = 13
	ExcFPE       ExcCode = 15
)

var excNames = [32]string{
	0:  "Interrupt",
	1:  "TLB Modification",
	2:  "TLB Miss (load)",
	3:  "TLB Miss (store)",
	4:  "Address Error (load)",
	5:  "Address Error (store)",
	6:  "Bus Error (instruction)",
	7:  "Bus Error (data)",
	8:  "Syscall",
	9:  "Breakpoint",
	10: "Reserved Instruction",
	11: "Coprocessor Unusable",
	12: "Arithmetic Overflow",
	13: "Trap",
	15: "Floating-Point",
	23: "Watch",
}

func (c ExcCode) String() string {
	if name := excNames[c&31]; name != "" {
		return name
	}
	return "Reserved"
}

// Cause returns the value of the Cause register for an exception of this
// kind.
func (c ExcCode) Cause() uint32 {
	return uint32(c&31) << 2
}

// CauseCode extracts the exception code from a Cause register value.
func CauseCode(cause uint32) ExcCode {
	return ExcCode(cause >> 2 & 31)
}
