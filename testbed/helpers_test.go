package testbed

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	editorbridge "github.com/wippyai/editor-bridge"
	"github.com/wippyai/editor-bridge/accessor"
	"github.com/wippyai/editor-bridge/editor"
	"github.com/wippyai/editor-bridge/engine"
	"github.com/wippyai/editor-bridge/host/gojahost"
)

const loadTimeout = 5 * time.Second

// spyHost records every script the control sends to the headless engine.
type spyHost struct {
	*gojahost.Host

	mu      sync.Mutex
	scripts []string
}

func newSpyHost(t *testing.T) *spyHost {
	t.Helper()
	h, err := gojahost.New(engine.HeadlessName, engine.Headless)
	if err != nil {
		t.Fatalf("gojahost.New: %v", err)
	}
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return &spyHost{Host: h}
}

func (s *spyHost) Run(ctx context.Context, h editorbridge.Handle, script string) (string, error) {
	s.mu.Lock()
	s.scripts = append(s.scripts, script)
	s.mu.Unlock()
	return s.Host.Run(ctx, h, script)
}

// ran returns the recorded scripts starting with prefix.
func (s *spyHost) ran(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, script := range s.scripts {
		if strings.HasPrefix(script, prefix) {
			out = append(out, script)
		}
	}
	return out
}

func (s *spyHost) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scripts)
}

// index returns the position of the first script starting with prefix.
func (s *spyHost) index(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, script := range s.scripts {
		if strings.HasPrefix(script, prefix) {
			return i
		}
	}
	return -1
}

func newControl(t *testing.T, host editorbridge.ScriptHost, reg *accessor.Registry) *editor.Control {
	t.Helper()
	ctrl := editor.New(host, editor.WithRegistry(reg))
	t.Cleanup(func() { _ = ctrl.Close(context.Background()) })
	return ctrl
}

// attach attaches ctrl and waits for the engine's Loaded signal.
func attach(t *testing.T, ctrl *editor.Control) {
	t.Helper()
	loaded := make(chan struct{})
	unsub := ctrl.OnEditorLoaded(func(*editor.Control) { close(loaded) })
	defer unsub()

	if err := ctrl.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	select {
	case <-loaded:
	case <-time.After(loadTimeout):
		t.Fatal("engine never reported Loaded")
	}
}

// flush waits for every effect posted to the control's queue so far.
func flush(t *testing.T, ctrl *editor.Control) {
	t.Helper()
	if err := ctrl.Queue().Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

type snapshot struct {
	Text     string         `json:"text"`
	Language string         `json:"language"`
	Options  map[string]any `json:"options"`
	Theme    string         `json:"theme"`
	Focused  bool           `json:"focused"`
	Layouts  int            `json:"layouts"`
	Actions  []string       `json:"actions"`
	Commands []string       `json:"commands"`
}

func engineState(t *testing.T, host editorbridge.ScriptHost, ctrl *editor.Control) snapshot {
	t.Helper()
	out, err := host.Run(context.Background(), ctrl.Handle(), "snapshot(element)")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	var s snapshot
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("decode snapshot %q: %v", out, err)
	}
	return s
}
