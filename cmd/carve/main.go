// Package main is the entry point for the carve direct modeler.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/carvecad/carve/internal/app"
	"github.com/carvecad/carve/internal/config"
	"github.com/carvecad/carve/internal/geom"
	"github.com/carvecad/carve/internal/kernel/boxkern"
	"github.com/carvecad/carve/internal/logging"
	"github.com/carvecad/carve/internal/refs"
	"github.com/carvecad/carve/internal/selection"
	"github.com/carvecad/carve/internal/ui"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	ConfigPath string
	LogLevel   string
	LogPath    string
	ScriptPath string
	ModelPath  string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	log, closeLog, err := buildLogger(cfg, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	kern := boxkern.New()

	// The picker needs the app's registry and the app needs a picker;
	// bind the cycle through an indirection filled in below.
	var picker *ui.Picker
	a, err := app.New(cfg, kern, selection.PickerFunc(func(p geom.ScreenPoint, cam geom.Camera) (refs.Ref, bool) {
		if picker == nil {
			return refs.Ref{}, false
		}
		return picker.Pick(p, cam)
	}), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer a.Close()
	picker = ui.NewPicker(kern, a.Registry(), a.CurrentSolid)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.ModelPath != "" {
		if err := a.Import(opts.ModelPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: opening %s: %v\n", opts.ModelPath, err)
			return 1
		}
	}

	// Script mode runs headless and exits.
	if opts.ScriptPath != "" {
		if err := a.RunScript(ctx, opts.ScriptPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
		return 1
	}
	term := ui.New(a, kern, picker, screen, log)
	if err := term.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// buildLogger picks the log destination. With the terminal UI active,
// stderr belongs to the screen, so logging is dropped unless a log file
// was requested. Script mode keeps stderr.
func buildLogger(cfg config.Config, opts options) (*logging.Logger, func(), error) {
	level := logging.ParseLevel(cfg.Logging.Level)

	if opts.LogPath != "" {
		f, err := os.OpenFile(opts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		log := logging.New(logging.Config{Level: level, Output: f, Prefix: "carve"})
		return log, func() { _ = f.Close() }, nil
	}

	if opts.ScriptPath != "" {
		return logging.New(logging.Config{Level: level, Prefix: "carve"}), func() {}, nil
	}
	return logging.Discard(), func() {}, nil
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.LogPath, "log", "", "Write logs to this file")
	flag.StringVar(&opts.ScriptPath, "script", "", "Run a Lua edit script and exit")
	flag.StringVar(&opts.ScriptPath, "s", "", "Run a Lua edit script and exit (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Carve - terminal direct modeler\n\n")
		fmt.Fprintf(os.Stderr, "Usage: carve [options] [model.step]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  carve                       Open with a fresh block\n")
		fmt.Fprintf(os.Stderr, "  carve part.step             Open a model\n")
		fmt.Fprintf(os.Stderr, "  carve -s edits.lua part.step  Apply a script headless\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("Carve %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if lvl := opts.LogLevel; lvl != "" {
		switch lvl {
		case "debug", "info", "warn", "error":
		default:
			fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", lvl)
			os.Exit(1)
		}
	}

	if args := flag.Args(); len(args) > 0 {
		opts.ModelPath = args[0]
	}
	return opts
}
