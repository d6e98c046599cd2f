package joybus

// Size of the controller pak's SRAM
const PakSize = 0x8000

// ControllerPak is the memory card that can be inserted into a controller.
type ControllerPak struct {
	Mem [PakSize]byte
}

// Read fills data with the pak's contents at addr. Accessory addresses above
// the SRAM read as zero.
func (p *ControllerPak) Read(addr uint16, data []byte) {
	addr &^= 0x1f
	if int(addr)+len(data) > PakSize {
		clear(data)
		return
	}
	copy(data, p.Mem[addr:])
}

// Write stores data at addr. Writes to accessory addresses are discarded.
func (p *ControllerPak) Write(addr uint16, data []byte) {
	addr &^= 0x1f
	if int(addr)+len(data) > PakSize {
		return
	}
	copy(p.Mem[addr:], data)
}
