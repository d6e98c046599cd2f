package messenger

// Kind identifies a message type.
type Kind int

const (
	// KindNone is used for benchmarking and should not be subscribed to.
	KindNone Kind = iota
	KindEmuLaunchedChanged
	KindEmuStopping
	KindEmuPausedChanged
	KindCapturingChanged
	KindStatusbarVisibilityChanged
	KindSizeChanged
	KindMovieLoopChanged
	KindReadonlyChanged
	KindTaskChanged
	KindCurrentSampleChanged
	KindUnfreezeCompleted
	KindWarpModifyStatusChanged
	KindSeekSavestateChanged
	KindScriptStarted
	KindAppReady
	KindResetCompleted
	KindResetRequested
	KindConfigSaving
	KindConfigLoaded
	KindRerecordsChanged
	KindSlotChanged
	KindSeekCompleted
	KindSpeedModifierChanged
	KindLagLimitExceeded
	KindEmuStartingChanged
	KindCoreResult
	KindFullscreenChanged
	KindDacrateChanged
	KindDebuggerCpuStateChanged
	KindDebuggerResumedChanged

	numKinds
)

var kindNames = [numKinds]string{
	"None",
	"EmuLaunchedChanged",
	"EmuStopping",
	"EmuPausedChanged",
	"CapturingChanged",
	"StatusbarVisibilityChanged",
	"SizeChanged",
	"MovieLoopChanged",
	"ReadonlyChanged",
	"TaskChanged",
	"CurrentSampleChanged",
	"UnfreezeCompleted",
	"WarpModifyStatusChanged",
	"SeekSavestateChanged",
	"ScriptStarted",
	"AppReady",
	"ResetCompleted",
	"ResetRequested",
	"ConfigSaving",
	"ConfigLoaded",
	"RerecordsChanged",
	"SlotChanged",
	"SeekCompleted",
	"SpeedModifierChanged",
	"LagLimitExceeded",
	"EmuStartingChanged",
	"CoreResult",
	"FullscreenChanged",
	"DacrateChanged",
	"DebuggerCpuStateChanged",
	"DebuggerResumedChanged",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "Unknown"
	}
	return kindNames[k]
}
