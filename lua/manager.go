package lua

import (
	"log"
	"slices"
	"sync"

	"github.com/clktmr/mupen64/messenger"
)

// Manager runs any number of scripts side by side.
type Manager struct {
	mu     sync.Mutex
	envs   []*Environment
	host   Host
	movie  Movie
	msgr   *messenger.Messenger
	logger *log.Logger
}

func NewManager(host Host, mov Movie, msgr *messenger.Messenger, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{host: host, movie: mov, msgr: msgr, logger: logger}
	messenger.Subscribe(msgr, func(messenger.EmuStopping) {
		for _, e := range m.environments() {
			e.AtStop()
		}
	})
	return m
}

func (m *Manager) environments() []*Environment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.envs)
}

// Start runs the script at path and broadcasts ScriptStarted.
func (m *Manager) Start(path string) error {
	e := NewEnvironment(path, m.host, m.movie, m.logger)
	if err := e.Start(); err != nil {
		m.logger.Printf("[Lua] %v", err)
		return err
	}
	m.mu.Lock()
	m.envs = append(m.envs, e)
	m.mu.Unlock()
	m.logger.Printf("[Lua] started %s", path)
	m.msgr.Broadcast(messenger.ScriptStarted{Path: path})
	return nil
}

// Stop stops all scripts started from path.
func (m *Manager) Stop(path string) {
	for _, e := range m.environments() {
		if e.Path() == path {
			e.Stop()
		}
	}
	m.prune()
}

func (m *Manager) StopAll() {
	for _, e := range m.environments() {
		e.Stop()
	}
	m.prune()
}

// Running returns the paths of all running scripts.
func (m *Manager) Running() []string {
	m.prune()
	var paths []string
	for _, e := range m.environments() {
		paths = append(paths, e.Path())
	}
	return paths
}

func (m *Manager) prune() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envs = slices.DeleteFunc(m.envs, func(e *Environment) bool {
		return !e.Running()
	})
}

// AtVI clears the overlay and runs the atvi callbacks of all scripts.
func (m *Manager) AtVI() {
	envs := m.environments()
	if len(envs) == 0 {
		return
	}
	clear(m.host.Overlay().Pix)
	for _, e := range envs {
		e.AtVI()
	}
	m.prune()
}

func (m *Manager) AtInput(port int) {
	for _, e := range m.environments() {
		e.AtInput(port)
	}
}
