package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	editorbridge "github.com/wippyai/editor-bridge"
	"github.com/wippyai/editor-bridge/accessor"
	"github.com/wippyai/editor-bridge/config"
	"github.com/wippyai/editor-bridge/dispatch"
	"github.com/wippyai/editor-bridge/editor"
	"github.com/wippyai/editor-bridge/engine"
	"github.com/wippyai/editor-bridge/handle"
	"github.com/wippyai/editor-bridge/host/gojahost"
	"github.com/wippyai/editor-bridge/host/wasmhost"
	"github.com/wippyai/editor-bridge/listener"
	"github.com/wippyai/editor-bridge/readiness"
	"github.com/wippyai/editor-bridge/script"
)

// session is one control attached to one engine.
type session struct {
	cfg      *config.Config
	log      *zap.Logger
	host     editorbridge.ScriptHost
	ctrl     *editor.Control
	headless bool
}

// installLogger routes every package logger to log.
func installLogger(log *zap.Logger) {
	accessor.SetLogger(log.Named("accessor"))
	dispatch.SetLogger(log.Named("dispatch"))
	editor.SetLogger(log.Named("editor"))
	gojahost.SetLogger(log.Named("goja"))
	handle.SetLogger(log.Named("handle"))
	listener.SetLogger(log.Named("listener"))
	readiness.SetLogger(log.Named("readiness"))
	script.SetLogger(log.Named("script"))
	wasmhost.SetLogger(log.Named("wasm"))
}

func newHost(ctx context.Context, cfg *config.Config, log *zap.Logger) (editorbridge.ScriptHost, bool, error) {
	switch cfg.Host.Kind {
	case config.HostWasm:
		data, err := os.ReadFile(cfg.Host.Module)
		if err != nil {
			return nil, false, fmt.Errorf("read engine module: %w", err)
		}
		h, err := wasmhost.New(ctx, data,
			wasmhost.WithLogger(log.Named("wasm")),
			wasmhost.WithConfig(wasmhost.Config{
				MemoryLimitPages: cfg.Host.MemoryLimitPages,
				EnableWASI:       cfg.Host.WASI,
				Envelope:         cfg.Host.Envelope,
			}))
		return h, false, err
	default:
		if cfg.Host.Script == "" {
			h, err := gojahost.New(engine.HeadlessName, engine.Headless, gojahost.WithLogger(log.Named("goja")))
			return h, true, err
		}
		src, err := os.ReadFile(cfg.Host.Script)
		if err != nil {
			return nil, false, fmt.Errorf("read engine script: %w", err)
		}
		h, err := gojahost.New(cfg.Host.Script, string(src), gojahost.WithLogger(log.Named("goja")))
		return h, false, err
	}
}

// openSession creates the host and control, applies the configured
// properties and waits for the engine to load.
func openSession(ctx context.Context, cfg *config.Config, log *zap.Logger) (*session, error) {
	host, headless, err := newHost(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	opts := []editor.Option{editor.WithLogger(log.Named("editor"))}
	if len(cfg.Editor.TypeNamespaces) > 0 {
		opts = append(opts, editor.WithTypeNamespaces(cfg.Editor.TypeNamespaces...))
	}
	ctrl := editor.New(host, opts...)
	s := &session{cfg: cfg, log: log, host: host, ctrl: ctrl, headless: headless}

	ctrl.SetCodeLanguage(cfg.Editor.Language)
	ctrl.SetReadOnly(cfg.Editor.ReadOnly)
	ctrl.SetHasGlyphMargin(cfg.Editor.GlyphMargin)
	ctrl.SetRequestedTheme(listener.ParseTheme(cfg.Editor.Theme))

	ctrl.OnInternalException(func(err error) {
		log.Warn("engine call failed", zap.Error(err))
	})
	ctrl.OnPropertyChanged(func(name string) {
		log.Debug("property changed", zap.String("property", name))
	})

	loaded := make(chan struct{})
	unsub := ctrl.OnEditorLoaded(func(*editor.Control) { close(loaded) })
	defer unsub()

	if err := ctrl.Attach(ctx); err != nil {
		s.close(ctx)
		return nil, fmt.Errorf("attach: %w", err)
	}
	select {
	case <-loaded:
	case <-ctx.Done():
		s.close(context.Background())
		return nil, fmt.Errorf("waiting for engine: %w", ctx.Err())
	}
	return s, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.ctrl.Close(ctx); err != nil {
		s.log.Warn("close control", zap.Error(err))
	}
	if err := s.host.Close(ctx); err != nil {
		s.log.Warn("close host", zap.Error(err))
	}
}

// flush waits until every effect queued on the control so far has run.
func (s *session) flush(ctx context.Context) error {
	return s.ctrl.Queue().Do(ctx, func(context.Context) error { return nil })
}

// run executes a raw engine script.
func (s *session) run(ctx context.Context, src string) (string, error) {
	if err := s.flush(ctx); err != nil {
		return "", err
	}
	return s.host.Run(ctx, s.ctrl.Handle(), src)
}

// command is one operation offered by the demo.
type command struct {
	name     string
	params   []string
	help     string
	headless bool
	exec     func(ctx context.Context, s *session, args []string) (string, error)
}

var commands = []command{
	{
		name:   "set-text",
		params: []string{"text"},
		help:   "assign the control's Text",
		exec: func(ctx context.Context, s *session, args []string) (string, error) {
			s.ctrl.SetText(args[0])
			return s.describe(ctx)
		},
	},
	{
		name:   "set-language",
		params: []string{"language"},
		help:   "assign CodeLanguage",
		exec: func(ctx context.Context, s *session, args []string) (string, error) {
			s.ctrl.SetCodeLanguage(args[0])
			return s.describe(ctx)
		},
	},
	{
		name:   "set-theme",
		params: []string{"theme"},
		help:   "Default, Light or Dark",
		exec: func(ctx context.Context, s *session, args []string) (string, error) {
			s.ctrl.SetRequestedTheme(listener.ParseTheme(args[0]))
			return s.describe(ctx)
		},
	},
	{
		name:   "set-read-only",
		params: []string{"read-only"},
		help:   "true or false",
		exec: func(ctx context.Context, s *session, args []string) (string, error) {
			ro, err := strconv.ParseBool(args[0])
			if err != nil {
				return "", err
			}
			s.ctrl.SetReadOnly(ro)
			return s.describe(ctx)
		},
	},
	{
		name:     "type",
		params:   []string{"text"},
		help:     "edit the text engine-side, as a user would",
		headless: true,
		exec: func(ctx context.Context, s *session, args []string) (string, error) {
			if _, err := s.run(ctx, "typeText(element, "+strconv.Quote(args[0])+");"); err != nil {
				return "", err
			}
			if err := s.flush(ctx); err != nil {
				return "", err
			}
			return "Text = " + strconv.Quote(s.ctrl.Text()), nil
		},
	},
	{
		name:   "reveal-line",
		params: []string{"line"},
		help:   "scroll a line into view",
		exec: func(ctx context.Context, s *session, args []string) (string, error) {
			line, err := strconv.Atoi(args[0])
			if err != nil {
				return "", err
			}
			s.ctrl.RevealLine(ctx, line)
			return "ok", nil
		},
	},
	{
		name: "position",
		help: "query the cursor position",
		exec: func(ctx context.Context, s *session, _ []string) (string, error) {
			p := s.ctrl.GetPosition(ctx)
			return fmt.Sprintf("line %d, column %d", p.LineNumber, p.Column), nil
		},
	},
	{
		name:     "snapshot",
		help:     "dump the engine state",
		headless: true,
		exec: func(ctx context.Context, s *session, _ []string) (string, error) {
			return s.run(ctx, "snapshot(element)")
		},
	},
	{
		name:   "run",
		params: []string{"script"},
		help:   "evaluate a raw engine script",
		exec: func(ctx context.Context, s *session, args []string) (string, error) {
			return s.run(ctx, args[0])
		},
	},
}

// available lists the commands the session's engine supports.
func (s *session) available() []command {
	var out []command
	for _, c := range commands {
		if c.headless && !s.headless {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *session) describe(ctx context.Context) (string, error) {
	if err := s.flush(ctx); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Text           %q\n", s.ctrl.Text())
	fmt.Fprintf(&b, "CodeLanguage   %s\n", s.ctrl.CodeLanguage())
	fmt.Fprintf(&b, "ReadOnly       %t\n", s.ctrl.ReadOnly())
	fmt.Fprintf(&b, "RequestedTheme %s", s.ctrl.RequestedTheme())
	if s.headless {
		snap, err := s.run(ctx, "snapshot(element)")
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\nengine         %s", snap)
	}
	return b.String(), nil
}
