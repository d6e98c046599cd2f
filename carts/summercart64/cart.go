// Package summercart64 emulates the SD card interface of the SummerCart64
// flashcart.
//
// The cartridge exposes a register window, an 8 KiB data buffer and write
// access to the cartridge ROM. Sectors are read from and written to a fixed
// size VHD image in the saves directory.
package summercart64

import (
	"encoding/binary"

	"github.com/clktmr/mupen64/frontend"
	"github.com/clktmr/mupen64/rcp/cpu"
	"github.com/clktmr/mupen64/rcp/periph"
)

// LockState is the state of the unlock sequence.
type LockState int

const (
	// Locked ignores all register accesses except writes to the key
	// register.
	Locked LockState = iota
	AwaitingUnlock
	Unlocked
)

func (s LockState) String() string {
	switch s {
	case Locked:
		return "locked"
	case AwaitingUnlock:
		return "awaiting unlock"
	}
	return "unlocked"
}

// State is the register file of the cartridge. It's stored as is in savestate
// sidecar files.
type State struct {
	Buffer      [BufferSize]byte
	Status      uint32
	Data0       uint32
	Data1       uint32
	SDSector    uint32
	SDByteswap  uint32
	CfgROMWrite uint32
	LockSeq     uint32
	Unlock      uint32
}

var stateSize = binary.Size(State{})

// Cart is an emulated SummerCart64. It's not safe for concurrent use, all
// accesses must happen on the emulation goroutine.
type Cart struct {
	state State

	rom     *periph.Device
	sdPath  string
	dialogs frontend.Dialogs
}

// New returns a cartridge that transfers sectors from the VHD image at sdPath
// into its buffer or rom.
func New(rom *periph.Device, sdPath string, dialogs frontend.Dialogs) *Cart {
	return &Cart{rom: rom, sdPath: sdPath, dialogs: dialogs}
}

// Init resets all registers and clears the buffer.
func (c *Cart) Init() {
	c.state = State{}
}

// State returns a copy of the register file.
func (c *Cart) State() State {
	return c.state
}

// SDPath returns the path of the backing VHD image.
func (c *Cart) SDPath() string {
	return c.sdPath
}

// LockState returns where the cartridge is in the unlock sequence.
func (c *Cart) LockState() LockState {
	if c.state.Unlock != 0 {
		return Unlocked
	}
	if c.state.LockSeq == 2 {
		return AwaitingUnlock
	}
	return Locked
}

// Map maps the register and buffer windows on bus.
func (c *Cart) Map(bus *periph.Bus) error {
	if err := bus.Map(RegsAddr, RegsSize, c); err != nil {
		return err
	}
	return bus.Map(BufferAddr, BufferSize, (*buffer)(&c.state.Buffer))
}

// Unmap removes the windows mapped by Map.
func (c *Cart) Unmap(bus *periph.Bus) {
	bus.Unmap(c)
	bus.Unmap((*buffer)(&c.state.Buffer))
}

// Load32 reads a register. All registers read zero while the cartridge is
// locked.
func (c *Cart) Load32(addr cpu.Addr) uint32 {
	if c.state.Unlock == 0 {
		return 0
	}
	switch addr & 0xfffc {
	case regStatus:
		return c.state.Status
	case regData0:
		return c.state.Data0
	case regData1:
		return c.state.Data1
	case regIdentifier:
		return identifier
	}
	return 0
}

// Store32 writes a register. Writes to anything but the key register are
// ignored while the cartridge is locked.
func (c *Cart) Store32(addr cpu.Addr, value uint32) {
	switch addr & 0xfffc {
	case regStatus:
		if c.state.Unlock != 0 {
			c.exec(command(value))
		}
	case regData0:
		if c.state.Unlock != 0 {
			c.state.Data0 = value
		}
	case regData1:
		if c.state.Unlock != 0 {
			c.state.Data1 = value
		}
	case regKey:
		c.key(value)
	}
}

func (c *Cart) key(value uint32) {
	switch value {
	case keyLock:
		c.state.Unlock = 0
		c.state.LockSeq = 0
	case keyUnlock1:
		if c.state.LockSeq == 0 {
			c.state.LockSeq = 2
		} else {
			c.state.LockSeq = 0
		}
	case keyUnlock2:
		if c.state.LockSeq == 2 {
			c.state.Unlock = 1
			c.state.LockSeq = 0
		}
	default:
		c.state.LockSeq = 0
	}
}

// exec runs a command. The status stays at statusError for commands that
// aren't emulated or failed.
func (c *Cart) exec(cmd command) {
	s := &c.state
	s.Status = uint32(statusError)
	switch cmd {
	case cmdConfigGet:
		if v, ok := c.configGet(config(s.Data0)); ok {
			s.Data1 = v
			s.Status = 0
		}
	case cmdConfigSet:
		if old, ok := c.configSet(config(s.Data0), s.Data1); ok {
			s.Data1 = old
			s.Status = 0
		}
	case cmdSDCardOp:
		switch s.Data1 {
		case sdOpDeinit, sdOpInit:
			s.Status = 0
		case sdOpByteSwapOn:
			s.SDByteswap = 1
			s.Status = 0
		case sdOpByteSwapOff:
			s.SDByteswap = 0
			s.Status = 0
		}
	case cmdSDSectorSet:
		s.SDSector = s.Data0
		s.Status = 0
	case cmdSDRead:
		c.sdRead()
	case cmdSDWrite:
		c.sdWrite()
	}
}

// buffer is the CPU's view on the cartridge buffer.
type buffer [BufferSize]byte

func (b *buffer) Load32(addr cpu.Addr) uint32 {
	off := (addr - BufferAddr) &^ 3
	return binary.BigEndian.Uint32(b[off:])
}

func (b *buffer) Store32(addr cpu.Addr, value uint32) {
	off := (addr - BufferAddr) &^ 3
	binary.BigEndian.PutUint32(b[off:], value)
}
