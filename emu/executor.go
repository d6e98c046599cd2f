package emu

import "sync"

// Executor runs functions one after another on a background goroutine.
// It's used for operations that must not run on the caller's goroutine,
// e.g. starting a ROM from a messenger callback.
type Executor struct {
	mtx     sync.Mutex
	queue   []func()
	running bool
	wg      sync.WaitGroup
}

// InvokeAsync queues fn and returns immediately.
func (x *Executor) InvokeAsync(fn func()) {
	x.wg.Add(1)
	x.mtx.Lock()
	x.queue = append(x.queue, fn)
	if x.running {
		x.mtx.Unlock()
		return
	}
	x.running = true
	x.mtx.Unlock()
	go x.drain()
}

func (x *Executor) drain() {
	for {
		x.mtx.Lock()
		if len(x.queue) == 0 {
			x.running = false
			x.mtx.Unlock()
			return
		}
		fn := x.queue[0]
		x.queue = x.queue[1:]
		x.mtx.Unlock()

		fn()
		x.wg.Done()
	}
}

// Wait blocks until all queued functions returned.
func (x *Executor) Wait() {
	x.wg.Wait()
}
