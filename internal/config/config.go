// Package config loads termframe settings.
//
// Settings come from, in increasing priority: built-in defaults, a TOML or
// YAML file chosen by extension, and TERMFRAME_ environment variables.
// A Watcher reloads the file when it changes on disk.
package config

import (
	"fmt"
	"strings"

	"github.com/dshills/termframe/internal/logging"
	"github.com/dshills/termframe/internal/renderer/compositor"
	"github.com/dshills/termframe/internal/renderer/core"
	"github.com/dshills/termframe/internal/renderer/scheduler"
)

// Config is the full set of termframe settings.
type Config struct {
	Renderer RendererConfig `toml:"renderer" yaml:"renderer"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
	Script   ScriptConfig   `toml:"script" yaml:"script"`
}

// RendererConfig holds frame loop and output settings.
type RendererConfig struct {
	// TargetFPS is the frame rate, 1-240.
	TargetFPS int `toml:"target_fps" yaml:"target_fps"`

	// OffThread diffs and writes frames on a worker goroutine.
	OffThread bool `toml:"off_thread" yaml:"off_thread"`

	// ColorMode is "auto", "truecolor" or "256".
	ColorMode string `toml:"color_mode" yaml:"color_mode"`

	// DirtyRows enables the dirty-row diff index.
	DirtyRows bool `toml:"dirty_rows" yaml:"dirty_rows"`

	// Background is the hex color frames are cleared to.
	Background string `toml:"background" yaml:"background"`

	// Mouse enables mouse reporting.
	Mouse bool `toml:"mouse" yaml:"mouse"`

	// Backend is "ansi" or "tcell".
	Backend string `toml:"backend" yaml:"backend"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`

	// File is where logs are written. Empty discards them.
	File string `toml:"file" yaml:"file"`
}

// ScriptConfig lists Lua scripts to load as scene nodes.
type ScriptConfig struct {
	Paths []string `toml:"paths" yaml:"paths"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Renderer: RendererConfig{
			TargetFPS:  60,
			ColorMode:  "auto",
			DirtyRows:  true,
			Background: "#000000",
			Mouse:      true,
			Backend:    "ansi",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks every setting and reports all problems at once as a
// *ValidationError.
func (c Config) Validate() error {
	var fields []FieldError
	add := func(path, msg string, value any) {
		fields = append(fields, FieldError{Path: path, Message: msg, Value: value})
	}

	r := c.Renderer
	if r.TargetFPS <= 0 || r.TargetFPS > scheduler.MaxFPS {
		add("renderer.target_fps", fmt.Sprintf("must be 1-%d", scheduler.MaxFPS), r.TargetFPS)
	}
	if _, err := compositor.ParseColorMode(r.ColorMode, nil); err != nil {
		add("renderer.color_mode", "must be auto, truecolor or 256", r.ColorMode)
	}
	if _, err := core.ParseHex(r.Background); err != nil {
		add("renderer.background", "must be a hex color", r.Background)
	}
	switch strings.ToLower(r.Backend) {
	case "ansi", "tcell":
	default:
		add("renderer.backend", "must be ansi or tcell", r.Backend)
	}
	if _, ok := logging.ParseLogLevel(c.Logging.Level); !ok {
		add("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}
	for i, p := range c.Script.Paths {
		if strings.TrimSpace(p) == "" {
			add(fmt.Sprintf("script.paths[%d]", i), "must not be empty", p)
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ColorMode resolves the configured color mode, consulting getenv for auto.
func (c Config) ColorMode(getenv func(string) string) compositor.ColorMode {
	mode, err := compositor.ParseColorMode(c.Renderer.ColorMode, getenv)
	if err != nil {
		return compositor.DetectColorMode(getenv)
	}
	return mode
}

// Background returns the parsed background color, black if invalid.
func (c Config) Background() core.RGBA {
	bg, err := core.ParseHex(c.Renderer.Background)
	if err != nil {
		return core.Black
	}
	return bg
}

// LogLevel returns the parsed log level.
func (c Config) LogLevel() logging.LogLevel {
	level, _ := logging.ParseLogLevel(c.Logging.Level)
	return level
}
