package periph

import (
	"fmt"
	"slices"
	"sync"

	"github.com/clktmr/mupen64/rcp/cpu"
)

// Handler is a device that responds to 32-bit accesses on the bus. It gets
// passed the full physical address.
type Handler interface {
	Load32(addr cpu.Addr) uint32
	Store32(addr cpu.Addr, value uint32)
}

type mapping struct {
	start, end cpu.Addr // end is exclusive
	h          Handler
}

// Bus dispatches CPU accesses to the devices mapped on the PI bus. Accesses to
// unmapped addresses read zero and discard writes.
type Bus struct {
	mappings []mapping
	mtx      sync.RWMutex
}

// Map makes h respond to accesses in [start, start+size).
func (b *Bus) Map(start cpu.Addr, size uint32, h Handler) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	m := mapping{start, start + cpu.Addr(size), h}
	for _, other := range b.mappings {
		if m.start < other.end && other.start < m.end {
			return fmt.Errorf("periph: mapping %v-%v overlaps %v-%v",
				m.start, m.end, other.start, other.end)
		}
	}
	b.mappings = append(b.mappings, m)
	slices.SortFunc(b.mappings, func(a, b mapping) int {
		return int(int64(a.start) - int64(b.start))
	})
	return nil
}

// Unmap removes the mapping of h.
func (b *Bus) Unmap(h Handler) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.mappings = slices.DeleteFunc(b.mappings, func(m mapping) bool {
		return m.h == h
	})
}

func (b *Bus) lookup(addr cpu.Addr) Handler {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	i, found := slices.BinarySearchFunc(b.mappings, addr, func(m mapping, addr cpu.Addr) int {
		if addr < m.start {
			return 1
		} else if addr >= m.end {
			return -1
		}
		return 0
	})
	if !found {
		return nil
	}
	return b.mappings[i].h
}

func (b *Bus) Load32(addr cpu.Addr) uint32 {
	if h := b.lookup(addr); h != nil {
		return h.Load32(addr)
	}
	return 0
}

func (b *Bus) Store32(addr cpu.Addr, value uint32) {
	if h := b.lookup(addr); h != nil {
		h.Store32(addr, value)
	}
}
