// Package config loads the optional YAML settings file. Command-line flags
// override anything set here.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"prompter/encoder"
	"prompter/teleprompter"
)

const (
	defaultCountdown = 3
	maxCountdown     = 15
	defaultSpeed     = teleprompter.DefaultSpeed
	defaultFontSize  = teleprompter.DefaultFontSize
	defaultOutDir    = "."
)

// Config mirrors the command-line flags. Pointer fields distinguish "unset"
// from the zero value.
type Config struct {
	Device    string  `yaml:"device,omitempty"`
	Countdown *int    `yaml:"countdown,omitempty"`
	Format    string  `yaml:"format,omitempty"`
	OutDir    string  `yaml:"out_dir,omitempty"`
	Speed     float64 `yaml:"speed,omitempty"`
	FontSize  int     `yaml:"font_size,omitempty"`
	Script    string  `yaml:"script,omitempty"`
	CopyPath  bool    `yaml:"copy_path,omitempty"`
	Hotkey    bool    `yaml:"hotkey,omitempty"`
	Beeps     *bool   `yaml:"beeps,omitempty"`
	LogPath   string  `yaml:"log_path,omitempty"`
}

func Default() Config {
	countdown := defaultCountdown
	beeps := true
	return Config{
		Countdown: &countdown,
		Format:    encoder.FormatFLAC,
		OutDir:    defaultOutDir,
		Speed:     defaultSpeed,
		FontSize:  defaultFontSize,
		Beeps:     &beeps,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/prompter/config.yaml, falling back to
// the OS user config directory.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		dir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolve config dir: %w", err)
		}
	}
	return filepath.Join(dir, "prompter", "config.yaml"), nil
}

// Load reads path over Default(). A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return cfg, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	cfg.merge(file)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) merge(o Config) {
	if o.Device != "" {
		c.Device = o.Device
	}
	if o.Countdown != nil {
		c.Countdown = o.Countdown
	}
	if o.Format != "" {
		c.Format = o.Format
	}
	if o.OutDir != "" {
		c.OutDir = o.OutDir
	}
	if o.Speed != 0 {
		c.Speed = o.Speed
	}
	if o.FontSize != 0 {
		c.FontSize = o.FontSize
	}
	if o.Script != "" {
		c.Script = o.Script
	}
	if o.LogPath != "" {
		c.LogPath = o.LogPath
	}
	if o.Beeps != nil {
		c.Beeps = o.Beeps
	}
	c.CopyPath = c.CopyPath || o.CopyPath
	c.Hotkey = c.Hotkey || o.Hotkey
}

func (c Config) Validate() error {
	switch c.Format {
	case encoder.FormatFLAC, encoder.FormatWAV:
	default:
		return fmt.Errorf("unknown format %q (want flac or wav)", c.Format)
	}
	if c.Countdown != nil && (*c.Countdown < 0 || *c.Countdown > maxCountdown) {
		return fmt.Errorf("countdown %d out of range [0, %d]", *c.Countdown, maxCountdown)
	}
	if c.Speed < 0 {
		return fmt.Errorf("negative scroll speed %v", c.Speed)
	}
	if c.FontSize < 0 {
		return fmt.Errorf("negative font size %d", c.FontSize)
	}
	return nil
}

// CountdownSeconds returns the configured countdown or the default.
func (c Config) CountdownSeconds() int {
	if c.Countdown == nil {
		return defaultCountdown
	}
	return *c.Countdown
}

// BeepsEnabled reports whether audible cues are on (default true).
func (c Config) BeepsEnabled() bool {
	return c.Beeps == nil || *c.Beeps
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
