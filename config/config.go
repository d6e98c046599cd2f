// Package config holds the persistent emulator settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/clktmr/mupen64/messenger"
)

// CoreType selects the CPU emulation.
type CoreType int

const (
	DynamicRecompiler CoreType = iota
	CachedInterpreter
	PureInterpreter
)

// Maximum number of entries in the recent file lists.
const MaxRecent = 10

type Config struct {
	CoreType            CoreType `json:"core_type"`
	EmulateFloatCrashes bool     `json:"emulate_float_crashes"`
	EmulateSDCard       bool     `json:"emulate_sd_card"`
	SpeedModifier       int      `json:"speed_modifier"`

	// IsResetRecordingEnabled records console resets into movies.
	IsResetRecordingEnabled bool   `json:"is_reset_recording_enabled"`
	VCRReadonly             bool   `json:"vcr_readonly"`
	MovieLoop               bool   `json:"movie_loop"`
	MovieAuthor             string `json:"movie_author"`
	SeekSavestateInterval   int    `json:"seek_savestate_interval"`
	SeekSavestateMaxCount   int    `json:"seek_savestate_max_count"`
	LagLimit                int    `json:"lag_limit"`

	SilentMode      bool   `json:"silent_mode"`
	SavesDirectory  string `json:"saves_directory"`
	StatesDirectory string `json:"states_directory"`
	StateSlot       int    `json:"state_slot"`

	CaptureDelayMS  int    `json:"capture_delay_ms"`
	FFmpegPath      string `json:"ffmpeg_path"`
	FFmpegArguments string `json:"ffmpeg_arguments"`

	VideoPlugin string `json:"video_plugin"`
	AudioPlugin string `json:"audio_plugin"`
	InputPlugin string `json:"input_plugin"`
	RSPPlugin   string `json:"rsp_plugin"`

	RecentROMs    []string `json:"recent_roms"`
	RecentMovies  []string `json:"recent_movies"`
	RecentScripts []string `json:"recent_scripts"`
}

// Default returns the settings used if no config file exists.
func Default() *Config {
	dir := "."
	if d, err := os.UserCacheDir(); err == nil {
		dir = filepath.Join(d, "mupen64")
	}
	return &Config{
		CoreType:              DynamicRecompiler,
		SpeedModifier:         100,
		VCRReadonly:           true,
		SeekSavestateInterval: 100,
		SeekSavestateMaxCount: 20,
		LagLimit:              60,
		SavesDirectory:        filepath.Join(dir, "save"),
		StatesDirectory:       filepath.Join(dir, "st"),
		CaptureDelayMS:        1000,
		FFmpegPath:            "ffmpeg",
		FFmpegArguments: "-y -f rawvideo -pixel_format rgba -video_size {w}x{h} -framerate {fps} -i - " +
			"-f s16le -ar {rate} -ac 2 -i {audio} -c:v libx264 -pix_fmt yuv420p {output}",
	}
}

// Path returns the default location of the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mupen64", "config.json"), nil
}

// Load reads the config at path on top of the defaults and broadcasts
// ConfigLoaded. A missing file isn't an error.
func Load(path string, m *messenger.Messenger) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.sanitize()
	if m != nil {
		m.Broadcast(messenger.ConfigLoaded{})
	}
	return cfg, nil
}

// Save broadcasts ConfigSaving and writes the config to path.
func (c *Config) Save(path string, m *messenger.Messenger) error {
	if m != nil {
		m.Broadcast(messenger.ConfigSaving{})
	}
	data, err := json.MarshalIndent(c, "", "\t")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) sanitize() {
	if c.SpeedModifier <= 0 {
		c.SpeedModifier = 100
	}
	c.SeekSavestateInterval = max(c.SeekSavestateInterval, 0)
	c.SeekSavestateMaxCount = max(c.SeekSavestateMaxCount, 0)
	c.CaptureDelayMS = max(c.CaptureDelayMS, 0)
	c.StateSlot = min(max(c.StateSlot, 0), 9)
}

// AddRecent moves path to the front of list.
func AddRecent(list *[]string, path string) {
	l := slices.DeleteFunc(*list, func(s string) bool { return s == path })
	l = slices.Insert(l, 0, path)
	if len(l) > MaxRecent {
		l = l[:MaxRecent]
	}
	*list = l
}
