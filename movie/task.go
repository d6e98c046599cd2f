package movie

// Task is the state of the movie engine.
type Task int

const (
	Idle Task = iota
	StartRecordingFromReset
	StartRecordingFromSnapshot
	StartRecordingFromExistingSnapshot
	Recording
	StartPlaybackFromReset
	StartPlaybackFromSnapshot
	Playback
)

var taskNames = [...]string{
	Idle:                               "idle",
	StartRecordingFromReset:            "start recording from reset",
	StartRecordingFromSnapshot:         "start recording from snapshot",
	StartRecordingFromExistingSnapshot: "start recording from existing snapshot",
	Recording:                          "recording",
	StartPlaybackFromReset:             "start playback from reset",
	StartPlaybackFromSnapshot:          "start playback from snapshot",
	Playback:                           "playback",
}

func (t Task) String() string {
	if t < 0 || int(t) >= len(taskNames) {
		return "unknown"
	}
	return taskNames[t]
}

// IsPlayback reports if t is playback or about to start playback.
func (t Task) IsPlayback() bool {
	return t == Playback || t == StartPlaybackFromReset || t == StartPlaybackFromSnapshot
}

// IsRecording reports if t is recording or about to start recording.
func (t Task) IsRecording() bool {
	return t == Recording || t == StartRecordingFromReset ||
		t == StartRecordingFromSnapshot || t == StartRecordingFromExistingSnapshot
}
