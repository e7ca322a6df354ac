// Package main is the entry point for the termframe demo.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/termframe/internal/config"
	"github.com/dshills/termframe/internal/logging"
	"github.com/dshills/termframe/internal/renderer"
	"github.com/dshills/termframe/internal/renderer/backend"
	"github.com/dshills/termframe/internal/renderer/snapshot"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// options holds the parsed command line.
type options struct {
	configPath string
	dumpFrame  string
	showVer    bool

	// set lists the flags given explicitly; only those override config.
	set map[string]bool

	fps       int
	offThread bool
	backend   string
	scripts   []string
	logFile   string
	logLevel  string
}

// scriptList collects repeated -script flags.
type scriptList []string

func (s *scriptList) String() string     { return fmt.Sprint(*s) }
func (s *scriptList) Set(v string) error { *s = append(*s, v); return nil }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.showVer {
		fmt.Printf("termframe %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg = applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	b, err := newBackend(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
		return 1
	}

	r, err := renderer.New(b, rendererOptions(cfg, logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	demo, err := buildScene(r, cfg, logger, cancel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer demo.Close()

	if opts.configPath != "" {
		w, err := watchConfig(opts.configPath, r, opts, logger)
		if err != nil {
			logger.Warn("config watch disabled: %v", err)
		} else {
			defer w.Close()
		}
	}

	if err := r.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	go logDiagnostics(ctx, r, logger)

	<-ctx.Done()
	r.Stop()

	if opts.dumpFrame != "" {
		if err := dumpFrame(r, opts.dumpFrame); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	var scripts scriptList

	fs := flag.NewFlagSet("termframe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file (.toml, .yaml)")
	fs.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.IntVar(&opts.fps, "fps", 60, "Target frames per second (1-240)")
	fs.BoolVar(&opts.offThread, "off-thread", false, "Diff and write frames on a worker goroutine")
	fs.StringVar(&opts.backend, "backend", "ansi", "Terminal backend (ansi, tcell)")
	fs.Var(&scripts, "script", "Lua script to add to the scene (repeatable)")
	fs.StringVar(&opts.logFile, "log-file", "", "Write logs to this file")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.dumpFrame, "dump-frame", "", "Write the last frame as JSON to this file on exit")
	fs.BoolVar(&opts.showVer, "version", false, "Show version information")
	fs.BoolVar(&opts.showVer, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "termframe - terminal cell-buffer renderer demo\n\n")
		fmt.Fprintf(stderr, "Usage: termframe [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment:\n")
		for _, name := range config.EnvNames() {
			fmt.Fprintf(stderr, "  %s\n", name)
		}
		fmt.Fprintf(stderr, "\nPress q or Ctrl+c to quit.\n")
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected arguments: %v", fs.Args())
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return opts, err
	}

	opts.scripts = scripts
	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// applyFlags overlays explicitly given flags onto cfg.
func applyFlags(cfg config.Config, opts options) config.Config {
	if opts.set["fps"] {
		cfg.Renderer.TargetFPS = opts.fps
	}
	if opts.set["off-thread"] {
		cfg.Renderer.OffThread = opts.offThread
	}
	if opts.set["backend"] {
		cfg.Renderer.Backend = opts.backend
	}
	if len(opts.scripts) > 0 {
		cfg.Script.Paths = append([]string(nil), opts.scripts...)
	}
	if opts.set["log-file"] {
		cfg.Logging.File = opts.logFile
	}
	if opts.set["log-level"] {
		cfg.Logging.Level = opts.logLevel
	}
	return cfg
}

// newLogger writes to the configured file. Without one, logs are dropped
// since stderr belongs to the terminal.
func newLogger(cfg config.LoggingConfig) (*logging.Logger, func(), error) {
	if cfg.File == "" {
		return logging.NullLogger, func() {}, nil
	}
	f, err := logging.OpenFile(cfg.File)
	if err != nil {
		return nil, nil, err
	}
	level, _ := logging.ParseLogLevel(cfg.Level)
	logger := logging.NewLogger(logging.LoggerConfig{
		Level:  level,
		Output: f,
		Prefix: "termframe",
	})
	return logger, func() { f.Close() }, nil
}

func newBackend(cfg config.Config) (backend.Backend, error) {
	if cfg.Renderer.Backend == "tcell" {
		return backend.NewTcellBackend()
	}
	return backend.NewTTYBackend(cfg.ColorMode(os.Getenv)), nil
}

func rendererOptions(cfg config.Config, logger *logging.Logger) renderer.Options {
	opts := renderer.DefaultOptions()
	opts.TargetFPS = cfg.Renderer.TargetFPS
	opts.OffThread = cfg.Renderer.OffThread
	opts.DirtyRows = cfg.Renderer.DirtyRows
	opts.Background = cfg.Background()
	opts.Mouse = cfg.Renderer.Mouse
	opts.Logger = logger
	return opts
}

// watchConfig applies frame rate changes from the config file while
// running. Flags given on the command line keep precedence.
func watchConfig(path string, r *renderer.Renderer, opts options, logger *logging.Logger) (*config.Watcher, error) {
	log := logger.WithComponent("config")
	return config.NewWatcher(path, func(cfg config.Config, err error) {
		if err != nil {
			log.Warn("reload %s: %v", path, err)
			return
		}
		cfg = applyFlags(cfg, opts)
		fps := cfg.Renderer.TargetFPS
		r.Do(func() {
			if err := r.SetTargetFPS(fps); err != nil {
				log.Warn("reload %s: %v", path, err)
				return
			}
			log.Info("reloaded %s: fps=%d", path, fps)
		})
	})
}

func logDiagnostics(ctx context.Context, r *renderer.Renderer, logger *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-r.Diagnostics():
			logger.Debug("diagnostic: %v", err)
		}
	}
}

func dumpFrame(r *renderer.Renderer, path string) error {
	frame := r.LastFrame()
	if frame == nil {
		return errors.New("no frame to dump")
	}
	return snapshot.WriteFile(path, frame)
}
