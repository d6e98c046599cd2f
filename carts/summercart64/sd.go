package summercart64

import (
	"errors"
	"io"
	"os"

	"github.com/clktmr/mupen64/carts/vhd"
	"github.com/clktmr/mupen64/frontend"
)

const (
	captionRead  = "SD read error"
	captionWrite = "SD write error"
)

// errSilent aborts a transfer without notifying the user.
var errSilent = errors.New("sector out of range")

func (c *Cart) error(text, caption string) error {
	if c.dialogs != nil {
		c.dialogs.ShowDialog(text, caption, frontend.Error)
	}
	return errors.New(text)
}

// seek validates the image and positions fp at the current sector.
func (c *Cart) seek(fp *os.File, caption string) error {
	sector := uint64(c.state.SDSector)
	count := uint64(c.state.Data1)
	if _, err := fp.Seek(-vhd.FooterSize, io.SeekEnd); err != nil {
		return c.error("Seek(1) error.", caption)
	}
	var buf [vhd.FooterSize]byte
	if _, err := io.ReadFull(fp, buf[:]); err != nil {
		return c.error("Read error.", caption)
	}
	var footer vhd.Footer
	footer.UnmarshalBinary(buf[:])
	switch footer.Validate() {
	case vhd.ErrCookie:
		return c.error("Invalid VHD file.", caption)
	case vhd.ErrType:
		return c.error("Invalid VHD type: must be a fixed disk.", caption)
	}
	if sector+count > footer.Sectors() {
		return errSilent
	}
	if _, err := fp.Seek(vhd.SectorSize*int64(sector), io.SeekStart); err != nil {
		return c.error("Seek(2) error.", caption)
	}
	return nil
}

// target resolves a transfer of size bytes at the physical address addr to
// either the buffer or the rom. Offsets are relative to the window.
func target(addr, size uint32) (off uint32, rom bool, ok bool) {
	if addr >= uint32(BufferAddr) && addr+size <= uint32(BufferAddr)+BufferSize {
		return addr - uint32(BufferAddr), false, true
	}
	if addr >= uint32(ROMAddr) && addr+size <= uint32(ROMAddr)+ROMSize {
		return addr - uint32(ROMAddr), true, true
	}
	return 0, false, false
}

func (c *Cart) sdRead() {
	addr := c.state.Data0 & 0x1fff_ffff
	count := c.state.Data1
	if count > maxSectors {
		return
	}
	size := vhd.SectorSize * count
	if c.sdPath == "" {
		c.error("Could not generate SD image path.", captionRead)
		return
	}
	fp, err := os.Open(c.sdPath)
	if err != nil {
		c.error("Could not open SD image file.", captionRead)
		return
	}
	defer fp.Close()

	if c.seek(fp, captionRead) != nil {
		return
	}
	off, rom, ok := target(addr, size)
	if !ok {
		return
	}

	data := make([]byte, size)
	n, _ := io.ReadFull(fp, data)
	for i := n; i < len(data); i++ {
		data[i] = 0xff
	}

	if !rom {
		copy(c.state.Buffer[off:], data)
	} else {
		c.writeROM(off, data)
	}
	c.state.Status = 0
}

// writeROM copies data into the rom, swapping bytes within halfwords if
// enabled.
func (c *Cart) writeROM(off uint32, data []byte) {
	if c.state.SDByteswap == 0 {
		c.rom.WriteAt(data, int64(off))
		return
	}
	lo := off &^ 1
	stage := make([]byte, (off+uint32(len(data))+1)&^1-lo)
	c.rom.ReadAt(stage, int64(lo))
	for i, b := range data {
		stage[((off+uint32(i))^1)-lo] = b
	}
	c.rom.WriteAt(stage, int64(lo))
}

func (c *Cart) sdWrite() {
	addr := c.state.Data0 & 0x1fff_ffff
	count := c.state.Data1
	if count > maxSectors {
		return
	}
	size := vhd.SectorSize * count
	if c.sdPath == "" {
		c.error("Could not generate SD image path.", captionWrite)
		return
	}
	fp, err := os.OpenFile(c.sdPath, os.O_RDWR, 0)
	if err != nil {
		c.error("Could not open SD image file.", captionWrite)
		return
	}
	defer fp.Close()

	if c.seek(fp, captionWrite) != nil {
		return
	}
	off, rom, ok := target(addr, size)
	if !ok {
		return
	}

	var data []byte
	if !rom {
		data = c.state.Buffer[off : off+size]
	} else {
		data = make([]byte, size)
		c.rom.ReadAt(data, int64(off))
	}
	c.writeSectors(fp, data)
}

// writeSectors completes a write command. The status stays pending if data
// wasn't written completely.
func (c *Cart) writeSectors(w io.Writer, data []byte) {
	if n, err := w.Write(data); err != nil || n != len(data) {
		c.error("Write error.", captionWrite)
		return
	}
	c.state.Status = 0
}
