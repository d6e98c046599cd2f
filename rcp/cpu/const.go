package cpu

import "fmt"

// The CPU's clock speed
const ClockSpeed = 93.75e6

// Memory regions in 32bit Kernel mode
const (
	KSEG0 uint32 = 0x8000_0000 // unmapped, cached
	KSEG1 uint32 = 0xa000_0000 // unmapped, uncached
)

// Addr represents a physical memory address
type Addr uint32

// PhysicalAddress returns the physical address of a virtual address in KSEG0 or
// KSEG1.
func PhysicalAddress(vaddr uint32) Addr {
	return Addr(vaddr &^ 0xe000_0000)
}

// KSEG1 returns the uncached virtual address of a.
func (a Addr) KSEG1() uint32 {
	return uint32(a) | KSEG1
}

func (a Addr) String() string {
	return fmt.Sprintf("%#08x", uint32(a))
}
