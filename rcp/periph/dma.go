package periph

import (
	"github.com/clktmr/mupen64/rcp/cpu"
)

// Interface emulates the PI register block. DMA transfers complete
// immediately, so the busy flags are never set.
type Interface struct {
	regs  registers
	bus   *Bus
	rdram []byte

	// OnInterrupt is called when a DMA transfer finished.
	OnInterrupt func()
}

func NewInterface(bus *Bus, rdram []byte) *Interface {
	return &Interface{bus: bus, rdram: rdram}
}

func (pi *Interface) Load32(addr cpu.Addr) uint32 {
	if (addr-RegsAddr)>>2 == 4 {
		return uint32(pi.regs.status)
	}
	if r := pi.regs.reg(addr); r != nil {
		return *r
	}
	return 0
}

func (pi *Interface) Store32(addr cpu.Addr, value uint32) {
	switch (addr - RegsAddr) >> 2 {
	case 2:
		pi.regs.readLen = value
		pi.dmaStore(value&0x00ff_ffff + 1)
	case 3:
		pi.regs.writeLen = value
		pi.dmaLoad(value&0x00ff_ffff + 1)
	case 4:
		if statusFlags(value)&(reset|clearInterrupt) != 0 {
			pi.regs.status &^= dmaFinished | dmaError
		}
	default:
		if r := pi.regs.reg(addr); r != nil {
			*r = value
		}
	}
}

// Loads bytes from PI bus into RDRAM
func (pi *Interface) dmaLoad(n uint32) {
	dram := pi.regs.dramAddr & 0x00ff_fffe
	cart := cpu.Addr(pi.regs.cartAddr &^ 1)
	var word uint32
	for i := uint32(0); i < n; i++ {
		a := cart + cpu.Addr(i)
		if i == 0 || a&3 == 0 {
			word = pi.bus.Load32(a &^ 3)
		}
		if int(dram+i) < len(pi.rdram) {
			pi.rdram[dram+i] = byte(word >> (24 - 8*(a&3)))
		}
	}
	pi.finish()
}

// Stores bytes from RDRAM to the PI bus
func (pi *Interface) dmaStore(n uint32) {
	dram := pi.regs.dramAddr & 0x00ff_fffe
	cart := cpu.Addr(pi.regs.cartAddr &^ 1)
	var word uint32
	for i := uint32(0); i < n; i++ {
		a := cart + cpu.Addr(i)
		if i == 0 || a&3 == 0 {
			word = pi.bus.Load32(a &^ 3)
		}
		var b byte
		if int(dram+i) < len(pi.rdram) {
			b = pi.rdram[dram+i]
		}
		shift := 24 - 8*(a&3)
		word = word&^(0xff<<shift) | uint32(b)<<shift
		if a&3 == 3 || i == n-1 {
			pi.bus.Store32(a&^3, word)
		}
	}
	pi.finish()
}

func (pi *Interface) finish() {
	pi.regs.status |= dmaFinished
	if pi.OnInterrupt != nil {
		pi.OnInterrupt()
	}
}
