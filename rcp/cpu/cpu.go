package cpu

// CPU is the exception state of the emulated R4300.
type CPU struct {
	Cause uint32
	EPC   uint32

	// PC is the address of the instruction that is executed by the dynamic
	// recompiler or cached interpreter.
	PC uint32

	// Interpreter is set if the pure interpreter core is used, in which case
	// the current address is tracked in InterpAddr instead of PC.
	Interpreter bool
	InterpAddr  uint32

	// OnException is the general exception handler. It's called after Cause
	// and EPC were updated.
	OnException func(c *CPU)

	exceptions uint64
}

// Addr returns the address of the currently executed instruction.
func (c *CPU) Addr() uint32 {
	if c.Interpreter {
		return c.InterpAddr
	}
	return c.PC
}

// RaiseException enters the general exception vector with the given code.
func (c *CPU) RaiseException(code ExcCode) {
	c.Cause = code.Cause()
	c.EPC = c.Addr()
	c.exceptions++
	if c.OnException != nil {
		c.OnException(c)
	}
}

// Exceptions returns how many exceptions were raised since creation.
func (c *CPU) Exceptions() uint64 {
	return c.exceptions
}
