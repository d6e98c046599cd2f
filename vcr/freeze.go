package vcr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/clktmr/mupen64/messenger"
	"github.com/clktmr/mupen64/movie"
	"github.com/clktmr/mupen64/rcp/serial/joybus"
)

// FreezeBlock is the VCR state stored in a savestate.
type FreezeBlock struct {
	UID    uint32
	Sample uint32
	VI     uint32
	Inputs []joybus.Sample
}

type freezeHeader struct {
	UID, Sample, VI, Length uint32
}

func (b *FreezeBlock) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	hdr := freezeHeader{b.UID, b.Sample, b.VI, uint32(len(b.Inputs))}
	binary.Write(&buf, binary.LittleEndian, &hdr)
	for _, s := range b.Inputs {
		buf.Write(s[:])
	}
	return buf.Bytes(), nil
}

func (b *FreezeBlock) UnmarshalBinary(data []byte) error {
	var hdr freezeHeader
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("%w: %w", ErrFreezeBlock, err)
	}
	if int64(hdr.Length)*4 != int64(r.Len()) || hdr.Sample > hdr.Length {
		return ErrFreezeBlock
	}
	b.UID, b.Sample, b.VI = hdr.UID, hdr.Sample, hdr.VI
	b.Inputs = make([]joybus.Sample, hdr.Length)
	for i := range b.Inputs {
		io.ReadFull(r, b.Inputs[i][:])
	}
	return nil
}

// Freeze returns the state to be stored in a savestate, nil if no movie is
// active.
func (v *VCR) Freeze() *FreezeBlock {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	if v.task == movie.Idle || v.movie == nil {
		return nil
	}
	return &FreezeBlock{
		UID:    v.movie.UID,
		Sample: uint32(v.sample),
		VI:     uint32(v.vi),
		Inputs: slices.Clone(v.movie.Inputs),
	}
}

// Unfreeze continues the active movie at the state of a loaded savestate.
// In read-only mode playback continues at the frozen sample. Otherwise the
// movie's input is replaced by the frozen input up to the frozen sample and
// recording continues from there, counting a rerecord.
func (v *VCR) Unfreeze(b *FreezeBlock) error {
	v.mtx.Lock()
	defer v.unlock()
	switch v.task {
	case movie.Idle:
		return nil
	case movie.StartPlaybackFromSnapshot, movie.StartRecordingFromSnapshot,
		movie.StartRecordingFromExistingSnapshot:
		// the movie's own starting point
		return nil
	}
	if b == nil {
		return ErrNotFromMovie
	}
	if b.UID != v.movie.UID {
		return ErrWrongMovie
	}
	if int(b.Sample) > len(b.Inputs) {
		return ErrFreezeBlock
	}

	if v.opts.Readonly {
		if int(b.Sample) > len(v.movie.Inputs) {
			return ErrAfterEnd
		}
		if v.task.IsRecording() {
			v.movie.VIs = uint32(v.vi)
			if err := v.movie.Save(v.path); err != nil {
				return fmt.Errorf("vcr: %w", err)
			}
		}
		v.sample, v.vi = int(b.Sample), int(b.VI)
		v.setTask(movie.Playback)
	} else {
		v.movie.Inputs = slices.Clone(b.Inputs[:b.Sample])
		v.sample, v.vi = int(b.Sample), int(b.VI)
		v.movie.VIs = b.VI
		v.movie.Rerecords++
		v.queue(messenger.RerecordsChanged{Rerecords: uint64(v.movie.Rerecords)})
		v.dropSeekSavestates(v.sample)
		v.setTask(movie.Recording)
	}
	v.reset, v.restart = false, false
	v.queue(messenger.CurrentSampleChanged{Sample: v.sample})
	v.queue(messenger.UnfreezeCompleted{})
	return nil
}
