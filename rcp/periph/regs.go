package periph

import "github.com/clktmr/mupen64/rcp/cpu"

// Physical address of the PI register block.
const RegsAddr cpu.Addr = 0x0460_0000

type statusFlags uint32

// Read access to status register
const (
	dmaBusy statusFlags = 1 << iota
	ioBusy
	dmaError
	dmaFinished
)

// Write access to status register
const (
	reset statusFlags = 1 << iota
	clearInterrupt
)

type registers struct {
	dramAddr uint32
	cartAddr uint32
	readLen  uint32
	writeLen uint32
	status   statusFlags

	latch1      uint32
	pulseWidth1 uint32
	pageSize1   uint32
	release1    uint32
	latch2      uint32
	pulseWidth2 uint32
	pageSize2   uint32
	release2    uint32
}

func (r *registers) reg(addr cpu.Addr) *uint32 {
	switch (addr - RegsAddr) >> 2 {
	case 0:
		return &r.dramAddr
	case 1:
		return &r.cartAddr
	case 2:
		return &r.readLen
	case 3:
		return &r.writeLen
	case 5:
		return &r.latch1
	case 6:
		return &r.pulseWidth1
	case 7:
		return &r.pageSize1
	case 8:
		return &r.release1
	case 9:
		return &r.latch2
	case 10:
		return &r.pulseWidth2
	case 11:
		return &r.pageSize2
	case 12:
		return &r.release2
	}
	return nil
}
