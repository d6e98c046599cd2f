// Package movie implements the .m64 input movie format.
//
// A movie is a 1024 byte little-endian header followed by one 4 byte
// controller sample per input poll and present controller.
package movie

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/clktmr/mupen64/rcp/serial/joybus"
)

const (
	HeaderSize = 1024
	Version    = 3
)

var Magic = [4]byte{'M', '6', '4', 0x1a}

var (
	ErrMagic     = errors.New("movie: invalid magic")
	ErrVersion   = errors.New("movie: unsupported version")
	ErrTruncated = errors.New("movie: truncated input data")
)

// StartFlags tell from which state a movie starts.
type StartFlags uint16

const (
	FromSnapshot StartFlags = 1 << 0
	FromStart    StartFlags = 1 << 1
	FromEEPROM   StartFlags = 1 << 2
)

func (f StartFlags) String() string {
	switch {
	case f&FromSnapshot != 0:
		return "snapshot"
	case f&FromEEPROM != 0:
		return "eeprom"
	case f&FromStart != 0:
		return "power-on"
	}
	return "unknown"
}

// ControllerFlags tell which controllers and accessories were present.
type ControllerFlags uint32

func (f ControllerFlags) Present(port int) bool   { return f&(1<<port) != 0 }
func (f ControllerFlags) MemPak(port int) bool    { return f&(1<<(port+4)) != 0 }
func (f ControllerFlags) RumblePak(port int) bool { return f&(1<<(port+8)) != 0 }

// Controllers returns the number of present controllers.
func (f ControllerFlags) Controllers() int {
	n := 0
	for port := range joybus.Ports {
		if f.Present(port) {
			n++
		}
	}
	return n
}

// ResetButtons marks a sample as a console reset instead of input.
const ResetButtons = joybus.ButtonReset | joybus.ButtonUnknown

type Header struct {
	Magic           [4]byte
	Version         uint32
	UID             uint32 // unix time of recording start
	VIs             uint32
	Rerecords       uint32
	VIsPerSecond    uint8
	Controllers     uint8
	_               uint16
	Samples         uint32
	StartFlags      StartFlags
	_               uint16
	ControllerFlags ControllerFlags
	_               [160]byte
	ROMName         [32]byte
	ROMCRC          uint32
	ROMCountry      uint16
	_               [56]byte
	VideoPlugin     [64]byte
	AudioPlugin     [64]byte
	InputPlugin     [64]byte
	RSPPlugin       [64]byte
	Author          [222]byte
	Description     [256]byte
}

// SetString copies s into the fixed size field dst, truncating if necessary.
func SetString(dst []byte, s string) {
	clear(dst)
	copy(dst, s)
}

// String returns the contents of a fixed size field up to the first NUL.
func String(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		src = src[:i]
	}
	return strings.TrimRight(string(src), " ")
}

func (h *Header) Validate() error {
	if h.Magic != Magic {
		return ErrMagic
	}
	if h.Version != Version {
		return fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return nil
}

// Movie is a header with its input samples.
type Movie struct {
	Header
	Inputs []joybus.Sample
}

// New returns an empty movie.
func New(flags StartFlags, controllers ControllerFlags) *Movie {
	m := &Movie{}
	m.Magic = Magic
	m.Version = Version
	m.StartFlags = flags
	m.ControllerFlags = controllers
	m.Controllers = uint8(controllers.Controllers())
	return m
}

// Read decodes a movie. The sample count in the header is authoritative,
// trailing data is ignored.
func Read(r io.Reader) (*Movie, error) {
	m := &Movie{}
	if err := binary.Read(r, binary.LittleEndian, &m.Header); err != nil {
		return nil, fmt.Errorf("movie: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.Inputs = make([]joybus.Sample, m.Samples)
	buf := make([]byte, 4*len(m.Inputs))
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("movie: %w", err)
	}
	for i := range m.Inputs {
		copy(m.Inputs[i][:], buf[4*i:])
	}
	if n < len(buf) {
		m.Inputs = m.Inputs[:n/4]
		return m, ErrTruncated
	}
	return m, nil
}

// Load reads the movie at path.
func Load(path string) (*Movie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}

// WriteTo encodes the movie, updating the header's sample count.
func (m *Movie) WriteTo(w io.Writer) (n int64, err error) {
	m.Samples = uint32(len(m.Inputs))
	bw := bufio.NewWriter(w)
	if err = binary.Write(bw, binary.LittleEndian, &m.Header); err != nil {
		return
	}
	n = HeaderSize
	for _, s := range m.Inputs {
		nn, _ := bw.Write(s[:])
		n += int64(nn)
	}
	err = bw.Flush()
	return
}

// Save writes the movie to path.
func (m *Movie) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := m.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Length returns the number of frames, i.e. samples per controller.
func (m *Movie) Length() int {
	c := max(1, int(m.Controllers))
	return len(m.Inputs) / c
}
