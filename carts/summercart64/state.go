package summercart64

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/clktmr/mupen64/carts/vhd"
)

// Number of sectors copied at once.
const copySectors = 128

// SidecarPath returns the path of the SD card image that belongs to the
// savestate st.
func SidecarPath(st string) string {
	return st + ".vhd"
}

// A sidecar is the disk contents of the SD image, followed by the register
// file and the footer of the image.

// Save stores a copy of the SD card image together with the register file
// next to the savestate st.
func (c *Cart) Save(st string) error {
	const caption = "Save error"
	if c.sdPath == "" {
		return c.error("Could not generate SD image path.", caption)
	}
	if st == "" {
		return c.error("Could not generate SD state path.", caption)
	}
	sdf, err := os.Open(c.sdPath)
	if err != nil {
		return c.error("Could not open SD image file.", caption)
	}
	defer sdf.Close()
	footer, err := vhd.ReadFooter(sdf)
	if err != nil || footer.Validate() != nil {
		return c.error("Invalid SD image file.", caption)
	}

	path := SidecarPath(st)
	err = writeFile(path, func(w io.Writer) error {
		if _, err := vhd.Copy(w, sdf, make([]byte, copySectors*vhd.SectorSize)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, &c.state); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, footer)
	})
	if err != nil {
		return c.error("Could not write SD state file.", caption)
	}
	return nil
}

// Load replaces the SD card image and the register file with the ones saved
// next to the savestate st. The image and registers are left untouched if
// the sidecar is invalid.
func (c *Cart) Load(st string) error {
	const caption = "Load error"
	if st == "" {
		return c.error("Could not generate SD state path.", caption)
	}
	if c.sdPath == "" {
		return c.error("Could not generate SD image path.", caption)
	}
	stf, err := os.Open(SidecarPath(st))
	if err != nil {
		return c.error("Could not open SD state file.", caption)
	}
	defer stf.Close()

	footer, err := vhd.ReadFooter(stf)
	if err != nil || footer.Validate() != nil {
		return c.error("Invalid SD state file.", caption)
	}
	fi, err := stf.Stat()
	if err != nil {
		return c.error("Could not open SD state file.", caption)
	}
	diskSize := int64(footer.DiskSize)
	if diskSize < 0 || fi.Size() != diskSize+int64(stateSize)+vhd.FooterSize {
		return c.error("Invalid SD state file.", caption)
	}
	var state State
	regs := io.NewSectionReader(stf, diskSize, int64(stateSize))
	if err := binary.Read(regs, binary.LittleEndian, &state); err != nil {
		return c.error("Invalid SD state file.", caption)
	}

	err = writeFile(c.sdPath, func(w io.Writer) error {
		disk := io.NewSectionReader(stf, 0, diskSize)
		if _, err := io.CopyBuffer(w, disk, make([]byte, copySectors*vhd.SectorSize)); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, footer)
	})
	if err != nil {
		return c.error("Could not write SD image file.", caption)
	}
	c.state = state
	return nil
}

// writeFile writes path through a temporary file in the same directory,
// which replaces path only after fn and all writes succeeded.
func writeFile(path string, fn func(w io.Writer) error) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err = fn(f); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
