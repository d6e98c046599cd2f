// Package messenger is a typed publish/subscribe bus connecting the emulator
// core with its frontend, the movie engine and scripts.
//
// Messages are delivered synchronously on the broadcasting goroutine. The
// subscriber list is locked only while it's read or modified, so callbacks may
// broadcast, subscribe and unsubscribe themselves.
package messenger

import (
	"log"
	"slices"
	"sync"
	"sync/atomic"
)

type subscription struct {
	fn      func(Message)
	removed atomic.Bool
}

type Messenger struct {
	mtx  sync.Mutex
	subs [numKinds][]*subscription
	log  *log.Logger
}

// Default is the process wide messenger.
var Default = New(nil)

// New returns a messenger that logs panicking subscribers to logger, or the
// default logger if nil.
func New(logger *log.Logger) *Messenger {
	if logger == nil {
		logger = log.Default()
	}
	return &Messenger{log: logger}
}

// Subscribe calls fn for every broadcast of kind. The returned function
// removes exactly this subscription, calling it more than once has no effect.
func (m *Messenger) Subscribe(kind Kind, fn func(Message)) (unsubscribe func()) {
	if kind < 0 || kind >= numKinds {
		panic("messenger: invalid kind")
	}
	s := &subscription{fn: fn}

	m.mtx.Lock()
	m.subs[kind] = append(slices.Clip(m.subs[kind]), s)
	m.mtx.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.removed.Store(true)
			m.mtx.Lock()
			m.subs[kind] = slices.DeleteFunc(slices.Clone(m.subs[kind]), func(v *subscription) bool {
				return v == s
			})
			m.mtx.Unlock()
		})
	}
}

// Subscribe calls fn for every broadcast of messages of type M. M must be a
// message struct, not an interface.
func Subscribe[M Message](m *Messenger, fn func(M)) (unsubscribe func()) {
	var zero M
	return m.Subscribe(zero.Kind(), func(msg Message) {
		fn(msg.(M))
	})
}

// Broadcast delivers msg to all current subscribers in subscription order.
// A panicking subscriber is logged and doesn't affect the others.
func (m *Messenger) Broadcast(msg Message) {
	kind := msg.Kind()
	m.mtx.Lock()
	subs := m.subs[kind]
	m.mtx.Unlock()

	for _, s := range subs {
		if s.removed.Load() {
			continue
		}
		m.deliver(s, msg)
	}
}

func (m *Messenger) deliver(s *subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Printf("[Messenger] subscriber of %v failed: %v", msg.Kind(), r)
		}
	}()
	s.fn(msg)
}

// Subscribers returns the number of subscriptions for kind.
func (m *Messenger) Subscribers(kind Kind) int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return len(m.subs[kind])
}
