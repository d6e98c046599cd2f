package emu

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/clktmr/mupen64/rcp/serial/joybus"
)

var ErrState = errors.New("emu: invalid machine state")

type machineState struct {
	Cause      uint32
	EPC        uint32
	PC         uint32
	InterpAddr uint32
	Frames     uint64
	PIFRAM     [joybus.PIFRAMSize]byte
	RDRAMSize  uint32
}

// MarshalState encodes the machine state, followed by the RDRAM contents.
func (e *Emulator) MarshalState() ([]byte, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.rom == nil {
		return nil, ErrNotRunning
	}
	st := machineState{
		Cause:      e.CPU.Cause,
		EPC:        e.CPU.EPC,
		PC:         e.CPU.PC,
		InterpAddr: e.CPU.InterpAddr,
		Frames:     uint64(e.frames.Load()),
		PIFRAM:     e.pifRAM,
		RDRAMSize:  uint32(len(e.rdram)),
	}
	var buf bytes.Buffer
	buf.Grow(binary.Size(st) + len(e.rdram))
	if err := binary.Write(&buf, binary.LittleEndian, &st); err != nil {
		return nil, fmt.Errorf("emu: %w", err)
	}
	buf.Write(e.rdram)
	return buf.Bytes(), nil
}

// UnmarshalState restores a state encoded by MarshalState.
func (e *Emulator) UnmarshalState(data []byte) error {
	var st machineState
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &st); err != nil {
		return fmt.Errorf("%w: %w", ErrState, err)
	}
	if int(st.RDRAMSize) != r.Len() {
		return fmt.Errorf("%w: rdram size %d, have %d", ErrState, st.RDRAMSize, r.Len())
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.rom == nil {
		return ErrNotRunning
	}
	if int(st.RDRAMSize) != len(e.rdram) {
		return fmt.Errorf("%w: rdram size %d, want %d", ErrState, st.RDRAMSize, len(e.rdram))
	}
	e.CPU.Cause = st.Cause
	e.CPU.EPC = st.EPC
	e.CPU.PC = st.PC
	e.CPU.InterpAddr = st.InterpAddr
	e.frames.Store(int64(st.Frames))
	e.pifRAM = st.PIFRAM
	r.Read(e.rdram)
	return nil
}

// Snapshot implements [vcr.Core].
func (e *Emulator) Snapshot() ([]byte, error) {
	return e.MarshalState()
}

// Restore implements [vcr.Core].
func (e *Emulator) Restore(state []byte) error {
	return e.UnmarshalState(state)
}
