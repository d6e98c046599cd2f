package vcr

import (
	"slices"

	"github.com/clktmr/mupen64/messenger"
	"github.com/clktmr/mupen64/movie"
)

type seekSavestate struct {
	vi   int
	data []byte
}

type seeker struct {
	target int // -1 if not seeking
	states map[int]seekSavestate
	keys   []int // sorted samples of states
}

func (s *seeker) reset() {
	s.target = -1
	s.states = make(map[int]seekSavestate)
	s.keys = s.keys[:0]
}

func (s *seeker) active() bool {
	return s.target >= 0
}

// nearest returns the latest savestate at or before sample.
func (s *seeker) nearest(sample int) (int, seekSavestate, bool) {
	i, found := slices.BinarySearch(s.keys, sample)
	if !found {
		i--
	}
	if i < 0 {
		return 0, seekSavestate{}, false
	}
	return s.keys[i], s.states[s.keys[i]], true
}

func (v *VCR) frame() int {
	return v.sample / max(1, v.movie.ControllerFlags.Controllers())
}

func (v *VCR) wantSeekSavestate() bool {
	interval := v.opts.SeekSavestateInterval
	if interval <= 0 || v.opts.SeekSavestateMaxCount <= 0 || v.sample == 0 {
		return false
	}
	if v.frame()%interval != 0 {
		return false
	}
	_, ok := v.seek.states[v.sample]
	return !ok
}

func (v *VCR) addSeekSavestate(sample, vi int, data []byte) {
	if _, ok := v.seek.states[sample]; !ok {
		i, _ := slices.BinarySearch(v.seek.keys, sample)
		v.seek.keys = slices.Insert(v.seek.keys, i, sample)
	}
	v.seek.states[sample] = seekSavestate{vi, data}
	for len(v.seek.keys) > v.opts.SeekSavestateMaxCount {
		delete(v.seek.states, v.seek.keys[0])
		v.seek.keys = slices.Delete(v.seek.keys, 0, 1)
	}
	v.queue(messenger.SeekSavestateChanged{Sample: sample})
}

// dropSeekSavestates removes the savestates made after sample, which became
// invalid because the input after sample changed.
func (v *VCR) dropSeekSavestates(sample int) {
	i, found := slices.BinarySearch(v.seek.keys, sample)
	if found {
		i++
	}
	for _, k := range v.seek.keys[i:] {
		delete(v.seek.states, k)
		v.queue(messenger.SeekSavestateChanged{Sample: k})
	}
	v.seek.keys = v.seek.keys[:i]
}

// SeekSavestates returns the samples at which seek savestates exist.
func (v *VCR) SeekSavestates() []int {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return slices.Clone(v.seek.keys)
}

func (v *VCR) Seeking() bool {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.seek.active()
}

func (v *VCR) endSeek() {
	v.seek.target = -1
	v.queue(messenger.WarpModifyStatusChanged{Seeking: false})
	v.queue(messenger.SeekCompleted{})
}

// Seek continues the movie at the given sample, relative to the current one
// if relative is set. Seeking backwards restores the nearest seek savestate,
// or restarts playback if there is none. The emulator then warps forward
// until the target is reached and SeekCompleted is sent. While recording, the
// inputs up to the target are replayed and recording resumes at the target.
func (v *VCR) Seek(target int, relative bool) error {
	v.mtx.Lock()
	if v.task != movie.Playback && v.task != movie.Recording {
		v.unlock()
		return ErrIdle
	}
	if relative {
		target += v.sample
	}
	limit := len(v.movie.Inputs)
	if v.task == movie.Recording {
		limit = v.sample
	}
	if target < 0 || target > limit {
		v.unlock()
		return ErrSeekRange
	}
	if target == v.sample {
		v.queue(messenger.SeekCompleted{})
		v.unlock()
		return nil
	}

	m := v.movie
	if target < v.sample {
		sample, st, ok := v.seek.nearest(target)
		switch {
		case ok:
			v.sample, v.vi = sample, st.vi
			v.queue(messenger.CurrentSampleChanged{Sample: sample})
			v.unlock()
			if err := v.core.Restore(st.data); err != nil {
				return err
			}
		case v.task == movie.Playback:
			v.unlock()
			if err := v.rewind(); err != nil {
				return err
			}
		default:
			v.unlock()
			return ErrSeekRange
		}
		v.mtx.Lock()
		if v.movie != m {
			v.unlock()
			return ErrIdle
		}
		if v.task == movie.Recording {
			v.dropSeekSavestates(target)
			v.movie.Rerecords++
			v.queue(messenger.RerecordsChanged{Rerecords: uint64(v.movie.Rerecords)})
		}
		if v.sample == target {
			v.queue(messenger.SeekCompleted{})
			v.unlock()
			return nil
		}
	}

	v.seek.target = target
	v.queue(messenger.WarpModifyStatusChanged{Seeking: true})
	v.unlock()
	v.core.SetWarp(true)
	return nil
}
