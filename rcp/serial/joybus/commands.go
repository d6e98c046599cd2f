// Package joybus implements the joybus protocol as it is represented in the
// PIF RAM, which adds a 2-byte header to each command. [PIF] executes the
// commands of a PIF RAM block against emulated controllers, the New*Command
// functions build command blocks like a game would.
package joybus

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/sigurn/crc8"
)

var (
	ErrPIFNoResponse      = errors.New("PIF no response flag")
	ErrPIFInvalidResponse = errors.New("PIF invalid response flag")
	ErrHeader             = errors.New("invalid header")
	ErrChecksum           = errors.New("checksum mismatch")
	ErrDataLength         = errors.New("invalid data length")
)

type Allocator interface {
	Alloc(n int) ([]byte, error)
}

// PIF-NUS special control bytes
const (
	CtrlSkip  byte = 0x00
	CtrlReset byte = 0xfd
	CtrlAbort byte = 0xfe
	CtrlNOP   byte = 0xff
)

func ControlByte(alloc Allocator, ctrl byte) error {
	b, err := alloc.Alloc(1)
	if err != nil {
		return err
	}
	b[0] = ctrl
	return nil
}

const headerLen = 3

const (
	// command bits encoded int the first header byte
	flagSkip  = 0x80
	flagReset = 0x40

	// error bits encoded in the second header byte
	flagNoResponse      = 0x80
	flagInvalidResponse = 0x40

	flagMask = 0xc0
)

// joybus command ids
const (
	idInfo            = 0x00
	idControllerState = 0x01
	idReadPak         = 0x02
	idWritePak        = 0x03
	idReadEEPROM      = 0x04
	idWriteEEPROM     = 0x05
	idReset           = 0xff
)

// joybus commands
const (
	cmdReset           = "\x01\x03\xff"
	cmdInfo            = "\x01\x03\x00"
	cmdControllerState = "\x01\x04\x01"
	cmdReadPak         = "\x03\x21\x02"
	cmdWritePak        = "\x23\x01\x03"
)

// Command is a single joybus command with its header, transmit and receive
// data, as found in the PIF RAM.
type Command []byte

func newCommand(alloc Allocator, cmd string) (Command, error) {
	c := Command(cmd)
	n := int(2 + c.txSize() + c.rxSize())
	buf, err := alloc.Alloc(n)
	if err != nil {
		return nil, err
	}
	copy(buf, []byte(c))
	return buf, nil
}

func (c Command) id() byte {
	return c[headerLen-1]
}

func (c Command) txData() []byte {
	if c.txSize() == 0 {
		return c[1:1]
	}
	return c[headerLen-1 : headerLen-1+c.txSize()]
}

func (c Command) txSize() uint8 {
	return uint8(c[0]) &^ flagMask
}

func (c Command) rxData() []byte {
	if c.txSize() == 0 {
		return c[1:1]
	}
	return c[headerLen-1+c.txSize() : headerLen-1+c.txSize()+c.rxSize()]
}

func (c Command) rxSize() uint8 {
	if c.txSize() == 0 {
		return 0
	}
	return uint8(c[1]) &^ flagMask
}

func (c Command) setError(flag byte) {
	c[1] |= flag
}

type Device uint16

const (
	Controller Device = 0x0500
	VRU        Device = 0x0001
	Mouse      Device = 0x0200
	Keyboard   Device = 0x0002
	LinkCable  Device = 0x0003
	EEPROM4k   Device = 0x0080
	EEPROM16k  Device = 0x00c0
)

// Status byte of a controller's info response
const (
	PakInserted    byte = 0x01
	PakNotInserted byte = 0x02
	PakCRCError    byte = 0x04
)

type InfoCommand struct{ Command }

func NewInfoCommand(alloc Allocator) (InfoCommand, error) {
	cmd, err := newCommand(alloc, cmdInfo)
	return InfoCommand{cmd}, err
}

func (c InfoCommand) Info() (dev Device, extra byte, err error) {
	header := cmdInfo
	if c.id() == idReset {
		header = cmdReset
	}
	if err = validate(c.Command, header); err != nil {
		return
	}
	rx := c.rxData()
	return Device(uint16(rx[0])<<8 | uint16(rx[1])), rx[2], nil
}

// Reset command has the same data layout as an Info command
func NewResetCommand(alloc Allocator) (InfoCommand, error) {
	cmd, err := newCommand(alloc, cmdReset)
	return InfoCommand{cmd}, err
}

type ButtonMask uint16

const (
	ButtonA ButtonMask = 1 << (15 - iota)
	ButtonB
	ButtonZ
	ButtonStart
	ButtonDUp
	ButtonDDown
	ButtonDLeft
	ButtonDRight
	ButtonReset // L+R+Start pressed simultaneously
	ButtonUnknown
	ButtonL
	ButtonR
	ButtonCUp
	ButtonCDown
	ButtonCLeft
	ButtonCRight
)

var buttonNames = [...]string{
	"A",
	"B",
	"Z",
	"Start",
	"↑",
	"↓",
	"←",
	"→",
	"Reset",
	"Unknown",
	"L",
	"R",
	"C↑",
	"C↓",
	"C←",
	"C→",
}

func (b ButtonMask) String() string {
	var sb strings.Builder
	for i, v := range buttonNames {
		if b&(1<<(15-i)) != 0 {
			if sb.Len() != 0 {
				sb.WriteString(" + ")
			}
			sb.WriteString(v)
		}
	}
	return sb.String()
}

// Sample is the response to a controller state command: two bytes of
// buttons followed by the signed stick position.
type Sample [4]byte

func NewSample(buttons ButtonMask, x, y int8) Sample {
	return Sample{byte(buttons >> 8), byte(buttons), byte(x), byte(y)}
}

func (s Sample) Buttons() ButtonMask {
	return ButtonMask(uint16(s[0])<<8 | uint16(s[1]))
}

func (s Sample) X() int8 { return int8(s[2]) }
func (s Sample) Y() int8 { return int8(s[3]) }

func (s Sample) String() string {
	return fmt.Sprintf("[%s] %d,%d", s.Buttons(), s.X(), s.Y())
}

type ControllerStateCommand struct{ Command }

func NewControllerStateCommand(alloc Allocator) (ControllerStateCommand, error) {
	cmd, err := newCommand(alloc, cmdControllerState)
	return ControllerStateCommand{cmd}, err
}

func (c ControllerStateCommand) State() (s Sample, err error) {
	if err = validate(c.Command, cmdControllerState); err != nil {
		return
	}
	copy(s[:], c.rxData())
	return
}

// pakAddress returns addr with the checksum in the lower 5 bits.
func pakAddress(addr uint16) uint16 {
	addr &^= 0x1f
	const lut = "\x01\x1a\x0d\x1c\x0e\x07\x19\x16\x0b\x1f\x15"
	for i, v := range lut {
		if addr&(0x1<<(15-i)) != 0 {
			addr ^= uint16(v)
		}
	}
	return addr
}

type PakCommand struct{ Command }

func (c PakCommand) SetAddress(addr uint16) {
	addr = pakAddress(addr)
	tx := c.txData()
	tx[1] = byte(addr >> 8)
	tx[2] = byte(addr)
}

func (c PakCommand) address() uint16 {
	tx := c.txData()
	return uint16(tx[1])<<8 | uint16(tx[2])
}

var pakCRC8 = crc8.MakeTable(crc8.Params{Poly: 0x85, Init: 0x00, RefIn: false, RefOut: false, XorOut: 0x00, Check: 0xF4, Name: "CRC-8 N64 Pak"})

func pakChecksum(data []byte) byte {
	csum := crc8.Init(pakCRC8)
	csum = crc8.Update(csum, data, pakCRC8)
	return crc8.Complete(csum, pakCRC8)
}

type ReadPakCommand struct{ PakCommand }

func NewReadPakCommand(alloc Allocator) (ReadPakCommand, error) {
	cmd, err := newCommand(alloc, cmdReadPak)
	return ReadPakCommand{PakCommand{cmd}}, err
}

func (c ReadPakCommand) Data() (data []byte, err error) {
	err = validate(c.Command, cmdReadPak)
	if err != nil {
		return
	}

	data = c.rxData()
	data = data[:len(data)-1] // exclude checksum byte

	if pakChecksum(data) != c.rxData()[len(data)] {
		err = ErrChecksum
	}

	return
}

type WritePakCommand struct {
	PakCommand
	csum byte
}

func NewWritePakCommand(alloc Allocator) (WritePakCommand, error) {
	cmd, err := newCommand(alloc, cmdWritePak)
	return WritePakCommand{PakCommand{cmd}, 0}, err
}

// len(src) must be match the payload size, i.e. 32 bytes.
func (c *WritePakCommand) SetData(src []byte) (err error) {
	err = validate(c.Command, cmdWritePak)
	if err != nil {
		return
	}

	data := c.txData()[3:] // exclude addr
	if len(src) != len(data) {
		return ErrDataLength
	}

	copy(data, src)
	c.csum = pakChecksum(data)

	return
}

func (c WritePakCommand) Result() error {
	err := validate(c.Command, cmdWritePak)
	if err != nil {
		return err
	} else if c.rxData()[0] != c.csum {
		return ErrChecksum
	}
	return nil
}

func validate(c Command, header string) error {
	expected := []byte(header)
	got := [headerLen]byte{}
	copy(got[:], c)

	got[0] &^= flagMask

	if !bytes.Equal(got[:], expected) {
		errFlags := got[1] & flagMask
		got[1] &^= errFlags
		if bytes.Equal(got[:], expected) {
			switch errFlags {
			case flagNoResponse:
				return ErrPIFNoResponse
			case flagInvalidResponse:
				return ErrPIFInvalidResponse
			}
		}
		return ErrHeader
	}

	return nil
}
