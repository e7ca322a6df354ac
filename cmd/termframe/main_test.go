package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/termframe/internal/config"
	"github.com/dshills/termframe/internal/logging"
	"github.com/dshills/termframe/internal/renderer"
	"github.com/dshills/termframe/internal/renderer/backend"
	"github.com/dshills/termframe/internal/renderer/core"
	"github.com/dshills/termframe/internal/renderer/snapshot"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{
		"-fps", "30", "-off-thread", "-backend", "tcell",
		"-script", "a.lua", "-script", "b.lua", "-dump-frame", "out.json",
	}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if opts.fps != 30 || !opts.offThread || opts.backend != "tcell" || opts.dumpFrame != "out.json" {
		t.Errorf("unexpected options %+v", opts)
	}
	if len(opts.scripts) != 2 || opts.scripts[1] != "b.lua" {
		t.Errorf("unexpected scripts %v", opts.scripts)
	}
	if !opts.set["fps"] || opts.set["log-level"] {
		t.Errorf("unexpected set flags %v", opts.set)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	for _, args := range [][]string{
		{"-fps", "fast"},
		{"-nope"},
		{"stray"},
	} {
		if _, err := parseFlags(args, io.Discard); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	base := config.Default()
	base.Renderer.TargetFPS = 90
	base.Logging.Level = "warn"

	opts, err := parseFlags([]string{"-off-thread", "-log-level", "debug"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	cfg := applyFlags(base, opts)

	if cfg.Renderer.TargetFPS != 90 {
		t.Errorf("unset -fps should keep the config value, got %d", cfg.Renderer.TargetFPS)
	}
	if !cfg.Renderer.OffThread || cfg.Logging.Level != "debug" {
		t.Errorf("flags should override config, got %+v", cfg)
	}
}

func TestNewLoggerWithoutFile(t *testing.T) {
	logger, closeLog, err := newLogger(config.LoggingConfig{Level: "info"})
	if err != nil {
		t.Fatal(err)
	}
	defer closeLog()
	if logger != logging.NullLogger {
		t.Error("expected the null logger without a file")
	}
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tf.log")
	logger, closeLog, err := newLogger(config.LoggingConfig{Level: "debug", File: path})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		t.Errorf("expected log output, got %q (%v)", data, err)
	}
}

func newSceneRenderer(t *testing.T, cfg config.Config) (*renderer.Renderer, *backend.NullBackend, context.Context) {
	t.Helper()
	b := backend.NewNullBackend(50, 20)
	r, err := renderer.New(b, rendererOptions(cfg, nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s, err := buildScene(r, cfg, logging.NullLogger, cancel)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	return r, b, ctx
}

func TestScenePaints(t *testing.T) {
	r, b, _ := newSceneRenderer(t, config.Default())
	if err := r.Tick(); err != nil {
		t.Fatal(err)
	}

	if c := b.GetCell(2, 1); c.Char != core.BorderRounded.Chars().TopLeft {
		t.Errorf("expected panel corner at (2,1), got %q", c.Char)
	}
	if c := b.GetCell(4, 3); c.Char != "H" {
		t.Errorf("expected greeting at (4,3), got %q", c.Char)
	}
	if c := b.GetCell(0, 0); c.Char != "q" {
		t.Errorf("expected status line at (0,0), got %q", c.Char)
	}
}

func TestSceneQuitKey(t *testing.T) {
	r, b, ctx := newSceneRenderer(t, config.Default())
	b.PostEvent(backend.KeyEventOf(core.KeyEvent{Name: "q", Rune: 'q'}))

	deadline := time.Now().Add(2 * time.Second)
	for ctx.Err() == nil && time.Now().Before(deadline) {
		if err := r.Tick(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	if ctx.Err() == nil {
		t.Error("q should cancel the run context")
	}
}

func TestSceneScripts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dot.lua")
	src := `function paint(buf, x, y) buf:setCell(x, y, "@", "#FFFFFF", "#000000") end`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Script.Paths = []string{path}

	r, b, _ := newSceneRenderer(t, cfg)
	if err := r.Tick(); err != nil {
		t.Fatal(err)
	}
	if c := b.GetCell(0, 10); c.Char != "@" {
		t.Errorf("expected script output at (0,10), got %q", c.Char)
	}
}

func TestSceneLogsHookErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.lua")
	src := "function paint() end\nfunction on_resize() error(\"no size\") end\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Script.Paths = []string{path}

	var out bytes.Buffer
	logger := logging.NewLogger(logging.LoggerConfig{Level: logging.LogLevelDebug, Output: &out})

	r, err := renderer.New(backend.NewNullBackend(10, 10), rendererOptions(cfg, nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Stop)
	s, err := buildScene(r, cfg, logger, func() {})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	// Open delivers the initial size to every node
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); !strings.Contains(got, "on_resize") || !strings.Contains(got, "no size") {
		t.Errorf("expected the hook error in the log, got %q", got)
	}
}

func TestSceneBadScript(t *testing.T) {
	cfg := config.Default()
	cfg.Script.Paths = []string{filepath.Join(t.TempDir(), "missing.lua")}

	r, err := renderer.New(backend.NewNullBackend(10, 10), rendererOptions(cfg, nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := buildScene(r, cfg, logging.NullLogger, func() {}); err == nil {
		t.Error("expected error for a missing script")
	}
}

func TestDumpFrame(t *testing.T) {
	r, _, _ := newSceneRenderer(t, config.Default())
	if err := r.Tick(); err != nil {
		t.Fatal(err)
	}
	r.Stop()

	path := filepath.Join(t.TempDir(), "frame.json")
	if err := dumpFrame(r, path); err != nil {
		t.Fatal(err)
	}
	snap, err := snapshot.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := snap.Size(); w != 50 || h != 20 {
		t.Errorf("expected 50x20, got %dx%d", w, h)
	}
	if c, ok := snap.Cell(2, 1); !ok || c.Char != core.BorderRounded.Chars().TopLeft {
		t.Errorf("expected panel corner in snapshot, got %+v", c)
	}
}
