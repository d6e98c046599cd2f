// Package rom loads N64 cartridge images.
package rom

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/japanese"
)

const HeaderSize = 0x40

// Maximum size of the cartridge ROM window.
const MaxSize = 64 << 20

var (
	ErrFormat = errors.New("rom: unknown byte order")
	ErrSize   = errors.New("rom: invalid size")
)

// Format is the byte order of a ROM dump, named after the usual file
// extensions.
type Format int

const (
	Z64 Format = iota // big-endian, native
	V64               // 16-bit byteswapped
	N64               // 32-bit little-endian
)

func (f Format) String() string {
	return [...]string{"z64", "v64", "n64"}[f]
}

// DetectFormat guesses the byte order from the PI configuration word at the
// start of the ROM.
func DetectFormat(b []byte) (Format, error) {
	if len(b) < 4 {
		return 0, ErrFormat
	}
	switch binary.BigEndian.Uint32(b) {
	case 0x80371240:
		return Z64, nil
	case 0x37804012:
		return V64, nil
	case 0x40123780:
		return N64, nil
	}
	return 0, ErrFormat
}

// Normalize converts b in-place to big-endian.
func Normalize(b []byte, f Format) {
	switch f {
	case V64:
		for i := 0; i+1 < len(b); i += 2 {
			b[i], b[i+1] = b[i+1], b[i]
		}
	case N64:
		for i := 0; i+3 < len(b); i += 4 {
			b[i], b[i+1], b[i+2], b[i+3] = b[i+3], b[i+2], b[i+1], b[i]
		}
	}
}

type Header struct {
	PIConfig   uint32
	ClockRate  uint32
	BootAddr   uint32
	Libultra   uint32
	CRC1       uint32
	CRC2       uint32
	_          [8]byte
	Title      [20]byte
	_          [7]byte
	Category   byte
	UniqueCode [2]byte
	Country    byte
	Version    byte
}

// Name returns the decoded and trimmed game title.
func (h *Header) Name() string {
	title := h.Title[:]
	if i := bytes.IndexByte(title, 0); i >= 0 {
		title = title[:i]
	}
	name, err := japanese.ShiftJIS.NewDecoder().String(string(title))
	if err != nil {
		name = string(title)
	}
	return strings.TrimSpace(name)
}

// GameCode returns the four character product code, e.g. "NSME".
func (h *Header) GameCode() string {
	return string([]byte{h.Category, h.UniqueCode[0], h.UniqueCode[1], h.Country})
}

var countries = map[byte]string{
	'7': "Beta", 'A': "Asia", 'B': "Brazil", 'C': "China", 'D': "Germany",
	'E': "USA", 'F': "France", 'G': "Gateway 64 (NTSC)", 'H': "Netherlands",
	'I': "Italy", 'J': "Japan", 'K': "Korea", 'L': "Gateway 64 (PAL)",
	'N': "Canada", 'P': "Europe", 'S': "Spain", 'U': "Australia",
	'W': "Scandinavia", 'X': "Europe", 'Y': "Europe",
}

// CountryName returns the region of the game.
func (h *Header) CountryName() string {
	if name, ok := countries[h.Country]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%#02x)", h.Country)
}

// VIsPerSecond returns the refresh rate of the game's video standard.
func (h *Header) VIsPerSecond() int {
	switch h.Country {
	case 'D', 'F', 'H', 'I', 'L', 'P', 'S', 'U', 'W', 'X', 'Y':
		return 50
	}
	return 60
}

// ROM is a cartridge image in big-endian byte order.
type ROM struct {
	Header
	Data   []byte
	Format Format
}

// Read decodes a ROM image, which may be gzip compressed.
func Read(r io.Reader) (*ROM, error) {
	br := bufio.NewReader(r)
	if magic, _ := br.Peek(2); bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("rom: %w", err)
		}
		defer zr.Close()
		br = bufio.NewReader(zr)
	}
	data, err := io.ReadAll(io.LimitReader(br, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("rom: %w", err)
	}
	if len(data) < HeaderSize || len(data) > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrSize, len(data))
	}
	f, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}
	Normalize(data, f)

	rom := &ROM{Data: data, Format: f}
	binary.Read(bytes.NewReader(data), binary.BigEndian, &rom.Header)
	return rom, nil
}

// Load reads the ROM at path.
func Load(path string) (*ROM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// VerifyChecksum reports if the header checksum matches the contents. Games
// using a CIC other than 6102 always fail the check.
func (r *ROM) VerifyChecksum() bool {
	crc := Checksum(r.Data)
	return crc[0] == r.CRC1 && crc[1] == r.CRC2
}
