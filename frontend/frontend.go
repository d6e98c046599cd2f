// Package frontend defines the services the emulator core consumes from its
// user interface: modal dialogs, questions and a status bar.
package frontend

// DialogType selects the icon and log severity of a dialog.
type DialogType int

const (
	Error DialogType = iota
	Warning
	Information
)

func (t DialogType) String() string {
	switch t {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Information:
		return "information"
	}
	return "unknown"
}

// Dialogs is the part of a frontend that hardware emulation needs to report
// host side failures.
type Dialogs interface {
	ShowDialog(text, caption string, typ DialogType)
}

// Service is implemented by every frontend.
type Service interface {
	Dialogs

	// ShowAskDialog asks a yes/no question and returns true on yes.
	ShowAskDialog(text, caption string, warning bool) bool

	// ShowStatusbar posts a short message to the status bar.
	ShowStatusbar(text string)
}
