package frontend

import (
	"log"
	"sync"
)

// Headless is a Service without any windows. Dialogs are written to the log,
// questions are answered by Answer or, if nil, with yes.
type Headless struct {
	Logger *log.Logger

	// SilentMode suppresses all interaction. Questions are always answered
	// with yes.
	SilentMode bool

	Answer func(text, caption string, warning bool) bool

	mtx       sync.Mutex
	statusbar string
}

func (h *Headless) logger() *log.Logger {
	if h.Logger == nil {
		return log.Default()
	}
	return h.Logger
}

func (h *Headless) ShowDialog(text, caption string, typ DialogType) {
	if typ < Error || typ > Information {
		panic("frontend: invalid dialog type")
	}
	h.logger().Printf("[FrontendService] %s: %s: %s", typ, caption, text)
}

func (h *Headless) ShowAskDialog(text, caption string, warning bool) bool {
	h.logger().Printf("[FrontendService] show_ask_dialog: '%s'", text)
	if h.SilentMode || h.Answer == nil {
		return true
	}
	return h.Answer(text, caption, warning)
}

func (h *Headless) ShowStatusbar(text string) {
	h.mtx.Lock()
	h.statusbar = text
	h.mtx.Unlock()
	h.logger().Printf("[FrontendService] %s", text)
}

// Statusbar returns the last message posted with ShowStatusbar.
func (h *Headless) Statusbar() string {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.statusbar
}
