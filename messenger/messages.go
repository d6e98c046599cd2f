package messenger

import "github.com/clktmr/mupen64/movie"

// Message is implemented by all message types. Each type carries its own
// payload.
type Message interface {
	Kind() Kind
}

type None struct{}

// EmuLaunchedChanged is sent after the emulator was started or stopped.
type EmuLaunchedChanged struct{ Launched bool }

// EmuStopping is sent before the emulator begins to stop.
type EmuStopping struct{}

type EmuPausedChanged struct{ Paused bool }

// CapturingChanged is sent when video capture started or stopped.
type CapturingChanged struct{ Capturing bool }

type StatusbarVisibilityChanged struct{ Visible bool }

// SizeChanged is sent when the output size changed.
type SizeChanged struct{ Width, Height int }

type MovieLoopChanged struct{ Loop bool }

type ReadonlyChanged struct{ Readonly bool }

// TaskChanged is sent on every transition of the movie engine.
type TaskChanged struct{ Old, New movie.Task }

type CurrentSampleChanged struct{ Sample int }

// UnfreezeCompleted is sent after the movie engine restored its state from a
// savestate.
type UnfreezeCompleted struct{}

// WarpModifyStatusChanged is sent when seeking started or finished.
type WarpModifyStatusChanged struct{ Seeking bool }

// SeekSavestateChanged is sent when a seek savestate was created or dropped
// at the given sample.
type SeekSavestateChanged struct{ Sample int }

// ScriptStarted is sent after a Lua script was started.
type ScriptStarted struct{ Path string }

// AppReady is sent once after the frontend finished initialization.
type AppReady struct{}

type ResetCompleted struct{}

// ResetRequested is sent when the user requested a reset, which is performed
// after the message was handled.
type ResetRequested struct{}

// ConfigSaving is sent before the config is saved, so subscribers can store
// their settings.
type ConfigSaving struct{}

// ConfigLoaded is sent after the config was loaded.
type ConfigLoaded struct{}

type RerecordsChanged struct{ Rerecords uint64 }

type SlotChanged struct{ Slot int }

// SeekCompleted is sent when the movie engine reached the seek target.
type SeekCompleted struct{}

type SpeedModifierChanged struct{ Percent int }

// LagLimitExceeded is sent when too many VIs passed without an input poll.
type LagLimitExceeded struct{ Exceeded bool }

type EmuStartingChanged struct{ Starting bool }

// CoreResult reports the outcome of an asynchronous core operation. Err is
// nil on success.
type CoreResult struct {
	Op  string
	Err error
}

type FullscreenChanged struct{ Fullscreen bool }

// DacrateChanged is sent when the audio sample rate changed.
type DacrateChanged struct{ Rate uint32 }

type DebuggerCpuStateChanged struct {
	PC     uint32
	Opcode uint32
}

type DebuggerResumedChanged struct{ Resumed bool }

func (None) Kind() Kind                       { return KindNone }
func (EmuLaunchedChanged) Kind() Kind         { return KindEmuLaunchedChanged }
func (EmuStopping) Kind() Kind                { return KindEmuStopping }
func (EmuPausedChanged) Kind() Kind           { return KindEmuPausedChanged }
func (CapturingChanged) Kind() Kind           { return KindCapturingChanged }
func (StatusbarVisibilityChanged) Kind() Kind { return KindStatusbarVisibilityChanged }
func (SizeChanged) Kind() Kind                { return KindSizeChanged }
func (MovieLoopChanged) Kind() Kind           { return KindMovieLoopChanged }
func (ReadonlyChanged) Kind() Kind            { return KindReadonlyChanged }
func (TaskChanged) Kind() Kind                { return KindTaskChanged }
func (CurrentSampleChanged) Kind() Kind       { return KindCurrentSampleChanged }
func (UnfreezeCompleted) Kind() Kind          { return KindUnfreezeCompleted }
func (WarpModifyStatusChanged) Kind() Kind    { return KindWarpModifyStatusChanged }
func (SeekSavestateChanged) Kind() Kind       { return KindSeekSavestateChanged }
func (ScriptStarted) Kind() Kind              { return KindScriptStarted }
func (AppReady) Kind() Kind                   { return KindAppReady }
func (ResetCompleted) Kind() Kind             { return KindResetCompleted }
func (ResetRequested) Kind() Kind             { return KindResetRequested }
func (ConfigSaving) Kind() Kind               { return KindConfigSaving }
func (ConfigLoaded) Kind() Kind               { return KindConfigLoaded }
func (RerecordsChanged) Kind() Kind           { return KindRerecordsChanged }
func (SlotChanged) Kind() Kind                { return KindSlotChanged }
func (SeekCompleted) Kind() Kind              { return KindSeekCompleted }
func (SpeedModifierChanged) Kind() Kind       { return KindSpeedModifierChanged }
func (LagLimitExceeded) Kind() Kind           { return KindLagLimitExceeded }
func (EmuStartingChanged) Kind() Kind         { return KindEmuStartingChanged }
func (CoreResult) Kind() Kind                 { return KindCoreResult }
func (FullscreenChanged) Kind() Kind          { return KindFullscreenChanged }
func (DacrateChanged) Kind() Kind             { return KindDacrateChanged }
func (DebuggerCpuStateChanged) Kind() Kind    { return KindDebuggerCpuStateChanged }
func (DebuggerResumedChanged) Kind() Kind     { return KindDebuggerResumedChanged }
