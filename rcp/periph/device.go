package periph

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/clktmr/mupen64/debug"
	"github.com/clktmr/mupen64/rcp/cpu"
)

const (
	piBus0Start = 0x0500_0000
	piBus0End   = 0x1fbf_ffff
	piBus1Start = 0x1fd0_0000
	piBus1End   = 0x7fff_ffff
)

// Device is a memory window on the PI bus, e.g. cartridge ROM or a
// peripheral's buffer. The contents are stored in the byte order seen by the
// CPU. Backing memory is allocated on the first write beyond the current
// length, reads from unallocated memory return zero.
//
// It implements io.ReaderAt and io.WriterAt relative to the start of the
// window. Device is safe for concurrent use.
type Device struct {
	addr cpu.Addr
	size uint32
	seek uint32
	mem  []byte

	mtx sync.Mutex
}

func NewDevice(piAddr cpu.Addr, size uint32) *Device {
	addr := uint32(piAddr)
	debug.Assert((addr >= piBus0Start && addr+size-1 <= piBus0End) ||
		(addr >= piBus1Start && addr+size-1 <= piBus1End),
		"invalid pi bus address")
	return &Device{addr: piAddr, size: size}
}

var ErrSeekOutOfRange = errors.New("seek out of range")

func (v *Device) Addr() cpu.Addr {
	return v.addr
}

func (v *Device) Size() int {
	return int(v.size)
}

// Bytes returns the allocated part of the window. It's only valid until the
// next write.
func (v *Device) Bytes() []byte {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.mem
}

// Reset replaces the contents of the window with p.
func (v *Device) Reset(p []byte) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	if len(p) > int(v.size) {
		p = p[:v.size]
	}
	v.mem = append(v.mem[:0], p...)
	v.seek = 0
}

func (v *Device) grow(n int) {
	if n > len(v.mem) {
		v.mem = append(v.mem, make([]byte, n-len(v.mem))...)
	}
}

func (v *Device) readAt(p []byte, off int64) (n int, err error) {
	if off < 0 || off > int64(v.size) {
		return 0, ErrSeekOutOfRange
	}
	left := int(v.size) - int(off)
	if len(p) >= left {
		p = p[:left]
		err = io.EOF
	}
	n = len(p)
	if int(off) < len(v.mem) {
		p = p[copy(p, v.mem[off:]):]
	}
	clear(p)
	return
}

func (v *Device) writeAt(p []byte, off int64) (n int, err error) {
	if off < 0 || off > int64(v.size) {
		return 0, ErrSeekOutOfRange
	}
	left := int(v.size) - int(off)
	if len(p) > left {
		p = p[:left]
		err = io.ErrShortWrite
	}
	v.grow(int(off) + len(p))
	n = copy(v.mem[off:], p)
	return
}

func (v *Device) ReadAt(p []byte, off int64) (n int, err error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.readAt(p, off)
}

func (v *Device) WriteAt(p []byte, off int64) (n int, err error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.writeAt(p, off)
}

func (v *Device) Read(p []byte) (n int, err error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	n, err = v.readAt(p, int64(v.seek))
	v.seek += uint32(n)
	return
}

func (v *Device) Write(p []byte) (n int, err error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	n, err = v.writeAt(p, int64(v.seek))
	v.seek += uint32(n)
	return
}

func (v *Device) Seek(offset int64, whence int) (newoffset int64, err error) {
	v.mtx.Lock()
	defer v.mtx.Unlock()

	switch whence {
	case io.SeekStart:
		// newoffset = 0
	case io.SeekCurrent:
		newoffset += int64(v.seek)
	case io.SeekEnd:
		newoffset = int64(v.size)
	}
	newoffset += offset
	if newoffset < 0 || newoffset > int64(v.size) {
		return int64(v.seek), ErrSeekOutOfRange
	}

	v.seek = uint32(newoffset)

	return
}

// Load32 implements [Handler].
func (v *Device) Load32(addr cpu.Addr) uint32 {
	var buf [4]byte
	v.ReadAt(buf[:], int64(addr-v.addr)&^3)
	return binary.BigEndian.Uint32(buf[:])
}

// Store32 implements [Handler].
func (v *Device) Store32(addr cpu.Addr, value uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], value)
	v.WriteAt(buf[:], int64(addr-v.addr)&^3)
}
