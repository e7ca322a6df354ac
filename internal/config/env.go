package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "TERMFRAME_"

type envSetting struct {
	name  string
	apply func(cfg *Config, value string) error
}

var envSettings = []envSetting{
	{"FPS", func(c *Config, v string) error { return setInt(&c.Renderer.TargetFPS, v) }},
	{"OFF_THREAD", func(c *Config, v string) error { return setBool(&c.Renderer.OffThread, v) }},
	{"COLOR_MODE", func(c *Config, v string) error { c.Renderer.ColorMode = v; return nil }},
	{"DIRTY_ROWS", func(c *Config, v string) error { return setBool(&c.Renderer.DirtyRows, v) }},
	{"BACKGROUND", func(c *Config, v string) error { c.Renderer.Background = v; return nil }},
	{"MOUSE", func(c *Config, v string) error { return setBool(&c.Renderer.Mouse, v) }},
	{"BACKEND", func(c *Config, v string) error { c.Renderer.Backend = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"LOG_FILE", func(c *Config, v string) error { c.Logging.File = v; return nil }},
	{"SCRIPTS", func(c *Config, v string) error { c.Script.Paths = splitPaths(v); return nil }},
}

// EnvNames returns the names of the recognized environment variables.
func EnvNames() []string {
	names := make([]string, len(envSettings))
	for i, s := range envSettings {
		names[i] = EnvPrefix + s.name
	}
	return names
}

// ApplyEnv overlays TERMFRAME_ variables found by lookup onto cfg.
// Note: Empty string values are treated as valid values, not as unset.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, s := range envSettings {
		name := EnvPrefix + s.name
		value, ok := lookup(name)
		if !ok {
			continue
		}
		if err := s.apply(cfg, value); err != nil {
			return &ParseError{Path: name, Message: err.Error(), Err: err}
		}
	}
	return nil
}

func setInt(dst *int, s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not an integer: %q", s)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		*dst = true
	case "false", "no", "off", "0", "":
		*dst = false
	default:
		return fmt.Errorf("not a boolean: %q", s)
	}
	return nil
}

// splitPaths splits a PATH-style list, dropping empty entries.
func splitPaths(s string) []string {
	var paths []string
	for _, p := range filepath.SplitList(s) {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, os.ExpandEnv(p))
		}
	}
	return paths
}
