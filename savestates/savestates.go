// Package savestates stores and restores the complete emulator state.
//
// A savestate is a gzip compressed file with a small header followed by the
// machine state and the VCR freeze block:
//
//	magic [8]byte | version uint16 | rom crc uint32 | data crc uint32 |
//	machine length uint32 | machine | freeze length uint32 | freeze
//
// All integers are little-endian. Uncompressed files are accepted too.
package savestates

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/clktmr/mupen64/frontend"
	"github.com/clktmr/mupen64/messenger"
	"github.com/clktmr/mupen64/rom"
	"github.com/clktmr/mupen64/vcr"
)

const (
	version = 1
	Slots   = 10
)

var magic = [8]byte{'M', '6', '4', 'S', 'T', 'A', 'T', 'E'}

var (
	ErrMagic       = errors.New("savestates: not a savestate")
	ErrVersion     = errors.New("savestates: unsupported version")
	ErrChecksum    = errors.New("savestates: corrupt savestate")
	ErrROMMismatch = errors.New("savestates: savestate is from a different rom")
	ErrNoROM       = errors.New("savestates: no rom loaded")
	ErrSlot        = errors.New("savestates: invalid slot")
)

type header struct {
	Magic   [8]byte
	Version uint16
	ROMCRC  uint32
	DataCRC uint32
}

// Job selects whether to save or load.
type Job int

const (
	Save Job = iota
	Load
)

func (j Job) String() string {
	if j == Load {
		return "load"
	}
	return "save"
}

// Machine is the emulated machine whose state is stored.
type Machine interface {
	ROMHeader() *rom.Header
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

// Freezer is implemented by vcr.VCR.
type Freezer interface {
	Freeze() *vcr.FreezeBlock
	Unfreeze(b *vcr.FreezeBlock) error
}

// SDCard is implemented by summercart64.Cart.
type SDCard interface {
	Save(st string) error
	Load(st string) error
}

type Manager struct {
	machine Machine
	vcr     Freezer
	msgr    *messenger.Messenger
	fe      frontend.Service
	logger  *log.Logger

	// SD is stored next to each savestate if not nil.
	SD SDCard

	// Dir is the directory of the slot savestates.
	Dir string

	slot int
}

func New(machine Machine, freezer Freezer, msgr *messenger.Messenger, fe frontend.Service, dir string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{machine: machine, vcr: freezer, msgr: msgr, fe: fe, Dir: dir, logger: logger}
}

func (m *Manager) Slot() int {
	return m.slot
}

// SetSlot selects the slot used by DoSlot with a negative slot.
func (m *Manager) SetSlot(slot int) error {
	if slot < 0 || slot >= Slots {
		return ErrSlot
	}
	m.slot = slot
	m.msgr.Broadcast(messenger.SlotChanged{Slot: slot})
	return nil
}

// SlotPath returns the file of a slot for the running ROM.
func (m *Manager) SlotPath(slot int) (string, error) {
	h := m.machine.ROMHeader()
	if h == nil {
		return "", ErrNoROM
	}
	name := h.Name()
	if name == "" {
		name = h.GameCode()
	}
	return filepath.Join(m.Dir, fmt.Sprintf("%s.st%d", name, slot)), nil
}

// DoSlot saves or loads slot, or the selected slot if negative.
func (m *Manager) DoSlot(slot int, job Job) error {
	if slot < 0 {
		slot = m.slot
	}
	if slot >= Slots {
		return ErrSlot
	}
	path, err := m.SlotPath(slot)
	if err != nil {
		return err
	}
	if job == Save {
		if err := os.MkdirAll(m.Dir, 0o755); err != nil {
			return fmt.Errorf("savestates: %w", err)
		}
	}
	if err := m.DoFile(path, job); err != nil {
		return err
	}
	if job == Save {
		m.fe.ShowStatusbar(fmt.Sprintf("Saved slot %d", slot+1))
	} else {
		m.fe.ShowStatusbar(fmt.Sprintf("Loaded slot %d", slot+1))
	}
	return nil
}

// DoFile saves to or loads from path.
func (m *Manager) DoFile(path string, job Job) (err error) {
	if job == Save {
		err = m.save(path)
	} else {
		err = m.load(path)
	}
	if err != nil {
		m.logger.Printf("[Savestates] %s %s: %v", job, path, err)
	}
	return err
}

func (m *Manager) save(path string) error {
	h := m.machine.ROMHeader()
	if h == nil {
		return ErrNoROM
	}
	state, err := m.machine.MarshalState()
	if err != nil {
		return fmt.Errorf("savestates: %w", err)
	}
	var freeze []byte
	if fb := m.vcr.Freeze(); fb != nil {
		freeze, _ = fb.MarshalBinary()
	}

	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, uint32(len(state)))
	body.Write(state)
	binary.Write(&body, binary.LittleEndian, uint32(len(freeze)))
	body.Write(freeze)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("savestates: %w", err)
	}
	zw := gzip.NewWriter(f)
	hdr := header{magic, version, h.CRC1, crc32.ChecksumIEEE(body.Bytes())}
	binary.Write(zw, binary.LittleEndian, &hdr)
	_, err = body.WriteTo(zw)
	err = errors.Join(err, zw.Close(), f.Close())
	if err != nil {
		return fmt.Errorf("savestates: %w", err)
	}

	if m.SD != nil {
		return m.SD.Save(path)
	}
	return nil
}

func read(path string) (hdr header, body []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	br := bufio.NewReader(f)
	var r io.Reader = br
	if b, _ := br.Peek(2); bytes.Equal(b, []byte{0x1f, 0x8b}) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return hdr, nil, err
		}
		defer zr.Close()
		r = zr
	}
	if err = binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return hdr, nil, ErrMagic
	}
	if hdr.Magic != magic {
		return hdr, nil, ErrMagic
	}
	if hdr.Version != version {
		return hdr, nil, fmt.Errorf("%w: %d", ErrVersion, hdr.Version)
	}
	body, err = io.ReadAll(r)
	if err != nil {
		return
	}
	if crc32.ChecksumIEEE(body) != hdr.DataCRC {
		return hdr, nil, ErrChecksum
	}
	return
}

// section splits a length prefixed section from b.
func section(b []byte) (data, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, ErrChecksum
	}
	n := binary.LittleEndian.Uint32(b)
	b = b[4:]
	if uint64(n) > uint64(len(b)) {
		return nil, nil, ErrChecksum
	}
	return b[:n], b[n:], nil
}

func (m *Manager) load(path string) error {
	h := m.machine.ROMHeader()
	if h == nil {
		return ErrNoROM
	}
	hdr, body, err := read(path)
	if err != nil {
		if errors.Is(err, ErrMagic) || errors.Is(err, ErrVersion) || errors.Is(err, ErrChecksum) {
			return err
		}
		return fmt.Errorf("savestates: %w", err)
	}
	if hdr.ROMCRC != h.CRC1 {
		text := fmt.Sprintf("The savestate was made with a different ROM (CRC %08X, running %08X).\n"+
			"Load it anyway?", hdr.ROMCRC, h.CRC1)
		if !m.fe.ShowAskDialog(text, "Savestates", true) {
			return ErrROMMismatch
		}
	}
	state, rest, err := section(body)
	if err != nil {
		return err
	}
	freeze, _, err := section(rest)
	if err != nil {
		return err
	}

	var fb *vcr.FreezeBlock
	if len(freeze) > 0 {
		fb = &vcr.FreezeBlock{}
		if err := fb.UnmarshalBinary(freeze); err != nil {
			return err
		}
	}
	if err := m.vcr.Unfreeze(fb); err != nil {
		m.fe.ShowDialog(err.Error(), "Savestates", frontend.Warning)
		return err
	}
	if err := m.machine.UnmarshalState(state); err != nil {
		return fmt.Errorf("savestates: %w", err)
	}
	if m.SD != nil {
		return m.SD.Load(path)
	}
	return nil
}
