package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

// memFS is an in-memory FileSystem.
type memFS map[string]string

func (m memFS) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(data), nil
}

func noEnv(string) (string, bool) { return "", false }

func newTestLoader(files memFS, env map[string]string) *Loader {
	lookup := noEnv
	if env != nil {
		lookup = func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}
	}
	return NewLoader(WithFS(files), WithLookupEnv(lookup))
}

const tomlConfig = `
[renderer]
target_fps = 30
off_thread = true
background = "#102030"

[logging]
level = "debug"

[script]
paths = ["a.lua", "b.lua"]
`

const yamlConfig = `
renderer:
  target_fps: 120
  color_mode: "256"
  backend: tcell
logging:
  file: /tmp/termframe.log
`

func TestLoadTOML(t *testing.T) {
	cfg, err := newTestLoader(memFS{"tf.toml": tomlConfig}, nil).Load("tf.toml")
	if err != nil {
		t.Fatal(err)
	}
	r := cfg.Renderer
	if r.TargetFPS != 30 || !r.OffThread || r.Background != "#102030" {
		t.Errorf("unexpected renderer config %+v", r)
	}
	// untouched settings keep their defaults
	if !r.DirtyRows || r.Backend != "ansi" {
		t.Errorf("defaults should survive, got %+v", r)
	}
	if cfg.Logging.Level != "debug" || len(cfg.Script.Paths) != 2 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	for _, name := range []string{"tf.yaml", "tf.yml"} {
		cfg, err := newTestLoader(memFS{name: yamlConfig}, nil).Load(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if cfg.Renderer.TargetFPS != 120 || cfg.Renderer.ColorMode != "256" || cfg.Renderer.Backend != "tcell" {
			t.Errorf("%s: unexpected renderer config %+v", name, cfg.Renderer)
		}
		if cfg.Logging.File != "/tmp/termframe.log" || cfg.Logging.Level != "info" {
			t.Errorf("%s: unexpected logging config %+v", name, cfg.Logging)
		}
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	cfg, err := newTestLoader(memFS{"empty.yaml": ""}, nil).Load("empty.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Renderer != Default().Renderer {
		t.Error("an empty file should yield defaults")
	}
}

func TestLoadMissingFile(t *testing.T) {
	for _, path := range []string{"", "missing.toml"} {
		cfg, err := newTestLoader(memFS{}, nil).Load(path)
		if err != nil {
			t.Errorf("%q: missing file should not be an error, got %v", path, err)
		}
		if cfg.Renderer.TargetFPS != 60 {
			t.Errorf("%q: expected defaults", path)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		files memFS
		path  string
		check func(error) bool
	}{
		{
			"unsupported extension",
			memFS{"tf.json": "{}"},
			"tf.json",
			func(err error) bool { return errors.Is(err, ErrUnsupportedFormat) },
		},
		{
			"toml syntax",
			memFS{"tf.toml": "[renderer\ntarget_fps = 1"},
			"tf.toml",
			func(err error) bool {
				var pe *ParseError
				return errors.As(err, &pe) && pe.Path == "tf.toml" && pe.Line > 0
			},
		},
		{
			"toml unknown field",
			memFS{"tf.toml": "[renderer]\nframes = 3\n"},
			"tf.toml",
			func(err error) bool {
				var pe *ParseError
				return errors.As(err, &pe)
			},
		},
		{
			"yaml unknown field",
			memFS{"tf.yaml": "renderer:\n  frames: 3\n"},
			"tf.yaml",
			func(err error) bool {
				var pe *ParseError
				return errors.As(err, &pe)
			},
		},
		{
			"invalid value",
			memFS{"tf.toml": "[renderer]\ntarget_fps = 500\n"},
			"tf.toml",
			func(err error) bool { return errors.Is(err, ErrValidationFailed) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader(tt.files, nil).Load(tt.path)
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"TERMFRAME_FPS":        "90",
		"TERMFRAME_OFF_THREAD": "yes",
		"TERMFRAME_MOUSE":      "off",
		"TERMFRAME_COLOR_MODE": "truecolor",
		"TERMFRAME_LOG_LEVEL":  "warn",
		"TERMFRAME_SCRIPTS":    "one.lua" + string(filepath.ListSeparator) + "two.lua",
	}
	cfg, err := newTestLoader(memFS{"tf.toml": tomlConfig}, env).Load("tf.toml")
	if err != nil {
		t.Fatal(err)
	}

	// the environment wins over the file
	if cfg.Renderer.TargetFPS != 90 {
		t.Errorf("expected fps 90, got %d", cfg.Renderer.TargetFPS)
	}
	if !cfg.Renderer.OffThread || cfg.Renderer.Mouse {
		t.Errorf("unexpected bools %+v", cfg.Renderer)
	}
	if cfg.Renderer.ColorMode != "truecolor" || cfg.Logging.Level != "warn" {
		t.Errorf("unexpected strings %+v", cfg)
	}
	if len(cfg.Script.Paths) != 2 || cfg.Script.Paths[1] != "two.lua" {
		t.Errorf("unexpected script paths %v", cfg.Script.Paths)
	}
}

func TestEnvBadValue(t *testing.T) {
	for name, value := range map[string]string{
		"TERMFRAME_FPS":        "fast",
		"TERMFRAME_DIRTY_ROWS": "maybe",
	} {
		_, err := newTestLoader(memFS{}, map[string]string{name: value}).Load("")
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Path != name {
			t.Errorf("%s=%s: expected ParseError, got %v", name, value, err)
		}
	}
}

func TestEnvNames(t *testing.T) {
	names := EnvNames()
	found := false
	for _, n := range names {
		if n == "TERMFRAME_FPS" {
			found = true
		}
	}
	if !found {
		t.Errorf("TERMFRAME_FPS missing from %v", names)
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want Format
		err  bool
	}{
		{"a.toml", FormatTOML, false},
		{"A.TOML", FormatTOML, false},
		{"a.yaml", FormatYAML, false},
		{"dir/a.yml", FormatYAML, false},
		{"a.ini", 0, true},
		{"noext", 0, true},
	}
	for _, tt := range tests {
		got, err := FormatFor(tt.path)
		if (err != nil) != tt.err || (!tt.err && got != tt.want) {
			t.Errorf("FormatFor(%q) = %s, %v", tt.path, got, err)
		}
	}
}
