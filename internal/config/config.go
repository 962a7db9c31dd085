// Package config loads the player configuration from YAML, merging the file
// over built-in defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string      `yaml:"log_level"`
	Audio    AudioConfig `yaml:"audio"`
}

type AudioConfig struct {
	// Backend selects the device layer: "malgo", "oto" or "null".
	Backend string `yaml:"backend"`
	// QueueMs is the target amount of queued audio in milliseconds.
	QueueMs uint32 `yaml:"queue_ms"`
	// PreferredBufferFrames is the requested device period size.
	PreferredBufferFrames uint32 `yaml:"preferred_buffer_frames"`
	// FixPitch preserves pitch across playback-rate changes.
	FixPitch bool `yaml:"fix_pitch"`
	// CacheRoot is the directory holding per-map render caches.
	CacheRoot string `yaml:"cache_root"`
}

func Default() Config {
	return Config{
		LogLevel: "INFO",
		Audio: AudioConfig{
			Backend:               "malgo",
			QueueMs:               60,
			PreferredBufferFrames: 128,
			FixPitch:              false,
			CacheRoot:             "saves",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error: the
// defaults simply apply.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Audio.Backend {
	case "malgo", "oto", "null":
	default:
		return fmt.Errorf("unknown audio backend %q", c.Audio.Backend)
	}
	return nil
}
