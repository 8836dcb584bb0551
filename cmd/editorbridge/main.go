package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"
	"go.uber.org/zap"

	"github.com/wippyai/editor-bridge/config"
)

func main() {
	var (
		configPath  = flag.StringP("config", "c", "", "Config file (.yaml, .toml or .jsonc); defaults to $"+config.EnvVar)
		hostKind    = flag.String("host", "", "Script host: goja or wasm")
		scriptFile  = flag.String("script", "", "Engine script for the goja host (default: built-in headless engine)")
		moduleFile  = flag.String("module", "", "Engine module for the wasm host")
		language    = flag.StringP("language", "l", "", "Initial code language")
		theme       = flag.String("theme", "", "Requested theme: Default, Light or Dark")
		readOnly    = flag.Bool("read-only", false, "Open the editor read-only")
		text        = flag.StringP("text", "t", "", "Initial text")
		textFile    = flag.StringP("file", "f", "", "Read the initial text from a file")
		runScripts  = flag.StringArrayP("run", "r", nil, "Engine script to run once loaded (repeatable)")
		verbose     = flag.BoolP("verbose", "v", false, "Debug logging")
		interactive = flag.BoolP("interactive", "i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if *hostKind != "" {
		cfg.Host.Kind = *hostKind
	}
	if *scriptFile != "" {
		cfg.Host.Script = *scriptFile
	}
	if *moduleFile != "" {
		cfg.Host.Module = *moduleFile
	}
	if *language != "" {
		cfg.Editor.Language = *language
	}
	if *theme != "" {
		cfg.Editor.Theme = *theme
	}
	if flag.CommandLine.Changed("read-only") {
		cfg.Editor.ReadOnly = *readOnly
	}
	if *verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	initial := *text
	if *textFile != "" {
		data, err := os.ReadFile(*textFile)
		if err != nil {
			fatal(err)
		}
		initial = string(data)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
			fatal(fmt.Errorf("interactive mode needs a terminal"))
		}
		// The TUI owns the terminal, so only errors are logged.
		cfg.Log.Level = "error"
		if err := runInteractive(cfg, initial); err != nil {
			fatal(err)
		}
		return
	}

	if err := run(cfg, initial, *runScripts); err != nil {
		fatal(err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func run(cfg *config.Config, initial string, scripts []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	installLogger(log)

	s, err := openSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.close(context.Background())

	log.Info("editor loaded",
		zap.String("host", cfg.Host.Kind),
		zap.Uint32("handle", uint32(s.ctrl.Handle())))

	if initial != "" {
		s.ctrl.SetText(initial)
	}

	state, err := s.describe(ctx)
	if err != nil {
		return err
	}
	fmt.Println(state)

	for _, src := range scripts {
		out, err := s.run(ctx, src)
		if err != nil {
			fmt.Printf("\n%s\n  error: %v\n", src, err)
			continue
		}
		if out == "" {
			out = "(no value)"
		}
		fmt.Printf("\n%s\n  %s\n", src, strings.ReplaceAll(out, "\n", "\n  "))
	}
	return nil
}
