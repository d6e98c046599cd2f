// Package vhd implements the footer of fixed size Virtual Hard Disk images.
//
// A fixed VHD is a raw disk image with a 512 byte footer appended. All
// integers in the footer are big-endian.
package vhd

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	FooterSize = 512
	SectorSize = 512
)

// Disk types
const (
	TypeNone      = 0
	TypeFixed     = 2
	TypeDynamic   = 3
	TypeDifferent = 4
)

var Cookie = [8]byte{'c', 'o', 'n', 'e', 'c', 't', 'i', 'x'}

var (
	ErrCookie   = errors.New("vhd: invalid cookie")
	ErrType     = errors.New("vhd: not a fixed disk")
	ErrChecksum = errors.New("vhd: checksum mismatch")
)

// Seconds between the unix epoch and the VHD epoch.
const epoch = 946684800

type Footer struct {
	Cookie         [8]byte
	Features       uint32
	Version        uint32
	DataOffset     uint64
	Timestamp      uint32
	CreatorApp     [4]byte
	CreatorVersion uint32
	CreatorOS      [4]byte
	DiskSize       uint64
	DataSize       uint64
	Cylinders      uint16
	Heads          uint8
	SectorsPerTrk  uint8
	Type           uint32
	Checksum       uint32
	UUID           [16]byte
	SavedState     uint8
	_              [427]byte
}

// NewFixed returns the footer for a fixed disk with the given size in bytes.
// Size is rounded down to full sectors.
func NewFixed(size uint64, now time.Time) *Footer {
	size -= size % SectorSize
	f := &Footer{
		Cookie:         Cookie,
		Features:       2,
		Version:        0x0001_0000,
		DataOffset:     ^uint64(0),
		Timestamp:      uint32(now.Unix() - epoch),
		CreatorApp:     [4]byte{'m', '6', '4', ' '},
		CreatorVersion: 0x0001_0000,
		CreatorOS:      [4]byte{'W', 'i', '2', 'k'},
		DiskSize:       size,
		DataSize:       size,
		Type:           TypeFixed,
	}
	f.Cylinders, f.Heads, f.SectorsPerTrk = geometry(size / SectorSize)
	rand.Read(f.UUID[:])
	f.Checksum = f.ComputeChecksum()
	return f
}

// CHS geometry as calculated by Microsoft's reference algorithm.
func geometry(total uint64) (cylinders uint16, heads, sectors uint8) {
	if total > 65535*16*255 {
		total = 65535 * 16 * 255
	}
	var spt, hds, cth uint64
	if total >= 65535*16*63 {
		spt = 255
		hds = 16
		cth = total / spt
	} else {
		spt = 17
		cth = total / spt
		hds = (cth + 1023) / 1024
		if hds < 4 {
			hds = 4
		}
		if cth >= hds*1024 || hds > 16 {
			spt = 31
			hds = 16
			cth = total / spt
		}
		if cth >= hds*1024 {
			spt = 63
			hds = 16
			cth = total / spt
		}
	}
	return uint16(cth / hds), uint8(hds), uint8(spt)
}

func (f *Footer) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(FooterSize)
	err := binary.Write(&buf, binary.BigEndian, f)
	return buf.Bytes(), err
}

func (f *Footer) UnmarshalBinary(data []byte) error {
	if len(data) < FooterSize {
		return io.ErrUnexpectedEOF
	}
	return binary.Read(bytes.NewReader(data[:FooterSize]), binary.BigEndian, f)
}

// ComputeChecksum returns the one's complement of the byte sum of the footer
// without the checksum field.
func (f *Footer) ComputeChecksum() uint32 {
	c := *f
	c.Checksum = 0
	b, _ := c.MarshalBinary()
	var sum uint32
	for _, v := range b {
		sum += uint32(v)
	}
	return ^sum
}

// Validate checks if f describes a fixed disk. The checksum is not verified.
func (f *Footer) Validate() error {
	if f.Cookie != Cookie {
		return ErrCookie
	}
	if f.Type != TypeFixed {
		return ErrType
	}
	return nil
}

// Sectors returns the capacity of the disk.
func (f *Footer) Sectors() uint64 {
	return f.DiskSize / SectorSize
}

func (f *Footer) Created() time.Time {
	return time.Unix(int64(f.Timestamp)+epoch, 0).UTC()
}

func (f *Footer) String() string {
	return fmt.Sprintf("%s disk, %d sectors, CHS %d/%d/%d, created %s",
		diskTypes[f.Type%uint32(len(diskTypes))], f.Sectors(),
		f.Cylinders, f.Heads, f.SectorsPerTrk, f.Created().Format(time.DateTime))
}

var diskTypes = [...]string{"none", "reserved", "fixed", "dynamic", "differencing"}

// ReadFooter reads the footer from the last 512 bytes of r.
func ReadFooter(r io.ReadSeeker) (*Footer, error) {
	if _, err := r.Seek(-FooterSize, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("vhd: %w", err)
	}
	var buf [FooterSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, fmt.Errorf("vhd: %w", err)
	}
	f := &Footer{}
	if err := f.UnmarshalBinary(buf[:]); err != nil {
		return nil, err
	}
	return f, nil
}

// Copy reads the footer of src and copies the disk contents without the
// footer to dst, using buf as the transfer buffer.
func Copy(dst io.Writer, src io.ReadSeeker, buf []byte) (*Footer, error) {
	f, err := ReadFooter(src)
	if err != nil {
		return nil, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("vhd: %w", err)
	}
	if _, err := io.CopyBuffer(dst, io.LimitReader(src, int64(f.DiskSize)), buf); err != nil {
		return nil, fmt.Errorf("vhd: %w", err)
	}
	return f, nil
}
