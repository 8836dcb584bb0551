package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	editorbridge "github.com/wippyai/editor-bridge"
	"github.com/wippyai/editor-bridge/accessor"
	"github.com/wippyai/editor-bridge/codec"
	bridgeerrors "github.com/wippyai/editor-bridge/errors"
	"github.com/wippyai/editor-bridge/listener"
	"github.com/wippyai/editor-bridge/readiness"
)

type fakeHost struct {
	mu        sync.Mutex
	bridge    editorbridge.Bridge
	scripts   []string
	started   []editorbridge.Handle
	detached  []editorbridge.Handle
	attachErr error
	results   map[string]string
	failOn    string
}

func (h *fakeHost) Attach(_ context.Context, _ editorbridge.Handle, b editorbridge.Bridge) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.attachErr != nil {
		return h.attachErr
	}
	h.bridge = b
	return nil
}

func (h *fakeHost) Start(_ context.Context, handle editorbridge.Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, handle)
	return nil
}

func (h *fakeHost) Run(_ context.Context, _ editorbridge.Handle, script string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scripts = append(h.scripts, script)
	if h.failOn != "" && strings.HasPrefix(script, h.failOn) {
		return "", errors.New("ReferenceError: " + h.failOn + " is not defined")
	}
	for prefix, result := range h.results {
		if strings.Contains(script, prefix) {
			return result, nil
		}
	}
	return "", nil
}

func (h *fakeHost) Detach(_ context.Context, handle editorbridge.Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detached = append(h.detached, handle)
	return nil
}

func (h *fakeHost) Close(context.Context) error { return nil }

func (h *fakeHost) ran(prefix string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, s := range h.scripts {
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out
}

func (h *fakeHost) all() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.scripts...)
}

func newTestControl(t *testing.T, host *fakeHost) (*Control, *accessor.Registry) {
	t.Helper()
	reg := accessor.NewRegistry()
	c := New(host, WithRegistry(reg))
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, reg
}

// load attaches c and delivers the engine's Loaded signal, waiting until
// loaded observers have run.
func load(t *testing.T, c *Control, reg *accessor.Registry) {
	t.Helper()
	loaded := make(chan struct{})
	unsub := c.OnEditorLoaded(func(*Control) { close(loaded) })
	defer unsub()

	if err := c.Attach(context.Background()); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	found, err := reg.CallAction(c.Handle(), editorbridge.LoadedAction)
	if err != nil || !found {
		t.Fatalf("CallAction(Loaded) = %v, %v", found, err)
	}
	select {
	case <-loaded:
	case <-time.After(5 * time.Second):
		t.Fatal("editor never loaded")
	}
}

// flush waits for every task posted to the control's queue so far.
func flush(t *testing.T, c *Control) {
	t.Helper()
	if err := c.Queue().Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestControl_TextQueuedUntilLoaded(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)

	c.SetText("hello")
	if got := host.all(); len(got) != 0 {
		t.Fatalf("engine invoked before attach: %v", got)
	}
	if c.Gate().Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", c.Gate().Pending())
	}

	load(t, c, reg)

	got := host.ran("updateContent")
	if len(got) != 1 || got[0] != `updateContent(element,"hello");` {
		t.Fatalf("updateContent calls = %v", got)
	}
	if !c.IsEditorLoaded() {
		t.Error("IsEditorLoaded = false after load")
	}
}

func TestControl_LoadRunsFocusAndLayoutFirst(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	c.SetText("x")
	load(t, c, reg)

	all := host.all()
	if len(all) < 3 {
		t.Fatalf("scripts = %v", all)
	}
	if !strings.HasSuffix(all[0], ".focus();") || !strings.HasSuffix(all[1], ".layout();") {
		t.Errorf("handshake = %v", all[:2])
	}
	if !strings.HasPrefix(all[2], "updateContent(") {
		t.Errorf("replay started with %s", all[2])
	}
}

func TestControl_ReplayOrder(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)

	c.SetMarkers([]Marker{{Severity: SeverityError, Message: "boom", StartLineNumber: 1, StartColumn: 1, EndLineNumber: 1, EndColumn: 2}})
	c.SetText("print(1)")
	c.SetCodeLanguage("python")
	load(t, c, reg)

	var order []string
	for _, s := range host.all() {
		switch {
		case strings.HasPrefix(s, "updateLanguage("):
			order = append(order, "language")
		case strings.HasPrefix(s, "updateContent("):
			order = append(order, "content")
		case strings.HasPrefix(s, "setModelMarkers("):
			order = append(order, "markers")
		}
	}
	want := []string{"language", "content", "markers"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("replay order = %v, want %v", order, want)
	}
	if got := host.ran("updateLanguage"); got[0] != `updateLanguage(element,"python");` {
		t.Errorf("updateLanguage = %s", got[0])
	}
}

func TestControl_BridgeWriteIsNotEchoed(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	load(t, c, reg)

	changed := make(chan string, 8)
	c.OnPropertyChanged(func(name string) { changed <- name })

	edited := "def f():\n\treturn \"x\""
	if err := reg.SetValue(context.Background(), c.Handle(), PropText, codec.Sanitize(edited)); err != nil {
		t.Fatal(err)
	}
	select {
	case name := <-changed:
		if name != PropText {
			t.Fatalf("changed %s, want Text", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Text never changed")
	}
	flush(t, c)

	if c.Text() != edited {
		t.Errorf("Text = %q, want %q", c.Text(), edited)
	}
	if got := host.ran("updateContent"); len(got) != 0 {
		t.Errorf("bridge write echoed: %v", got)
	}

	c.SetText("app")
	flush(t, c)
	if got := host.ran("updateContent"); len(got) != 1 || got[0] != `updateContent(element,"app");` {
		t.Errorf("application write = %v", got)
	}
}

func TestControl_ApplicationWriteDuringBridgeSet(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	load(t, c, reg)

	release := c.BeginBridgeSet()
	c.SetText("app")
	release()
	flush(t, c)

	if got := host.ran("updateContent"); len(got) != 1 {
		t.Fatalf("application write during bridge set = %v", got)
	}
}

func TestControl_TypedSelectionFromEngine(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	load(t, c, reg)

	raw := `{"selectionStartLineNumber":1,"selectionStartColumn":2,"positionLineNumber":3,"positionColumn":4}`
	if err := reg.SetValueWithType(context.Background(), c.Handle(), PropSelectedRange, codec.Sanitize(raw), "Selection"); err != nil {
		t.Fatal(err)
	}
	flush(t, c)

	want := Selection{SelectionStartLineNumber: 1, SelectionStartColumn: 2, PositionLineNumber: 3, PositionColumn: 4}
	if got := c.SelectedRange(); got != want {
		t.Errorf("SelectedRange = %+v, want %+v", got, want)
	}
}

func TestControl_OptionsReconciliation(t *testing.T) {
	host := &fakeHost{}
	c, _ := newTestControl(t, host)

	c.SetCodeLanguage("go")
	c.SetReadOnly(true)
	o := c.Options()
	if o.Language == nil || *o.Language != "go" || o.ReadOnly == nil || !*o.ReadOnly {
		t.Fatalf("Options = %+v", o)
	}

	var changes []string
	c.OnPropertyChanged(func(name string) { changes = append(changes, name) })
	pending := c.Gate().Pending()

	c.SetOptions(c.Options())
	if len(changes) != 0 || c.Gate().Pending() != pending {
		t.Fatalf("assigning Options back changed %v", changes)
	}

	lang := "rust"
	size := 14.0
	c.SetOptions(Options{Language: &lang, FontSize: &size})
	if c.CodeLanguage() != "rust" {
		t.Errorf("CodeLanguage = %s", c.CodeLanguage())
	}
	if !c.ReadOnly() {
		t.Error("unset ReadOnly option cleared the property")
	}
	o = c.Options()
	if o.FontSize == nil || *o.FontSize != 14 || o.ReadOnly == nil || !*o.ReadOnly {
		t.Errorf("Options = %+v", o)
	}

	changes = nil
	c.SetOptions(Options{Language: &lang, FontSize: &size})
	if len(changes) != 0 {
		t.Errorf("repeated SetOptions changed %v", changes)
	}
}

func TestControl_DecorationsClearThenApply(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	load(t, c, reg)

	d := Decoration{Range: Range{StartLineNumber: 1, StartColumn: 1, EndLineNumber: 1, EndColumn: 5}}
	c.SetDecorations([]Decoration{d})
	flush(t, c)
	c.SetDecorations(nil)
	flush(t, c)

	got := host.ran("updateDecorations")
	want := []string{
		`updateDecorations(element,[{"options":{},"range":{"endColumn":5,"endLineNumber":1,"startColumn":1,"startLineNumber":1}}]);`,
		`updateDecorations(element,[]);`,
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("updateDecorations calls:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestControl_DecorationLockSerializes(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	load(t, c, reg)

	c.decorations.Set([]Decoration{{}})
	flush(t, c)
	ch := c.currentChannel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.applyDecorations(context.Background(), ch); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got := host.ran("updateDecorations")
	if len(got) != 21 {
		t.Fatalf("got %d updateDecorations calls, want 21", len(got))
	}
	for i, s := range got {
		isClear := s == "updateDecorations(element,[]);"
		if isClear != (i%2 == 1) {
			t.Fatalf("call %d interleaved: %v", i, got)
		}
	}
}

func TestControl_MarkersUseOwner(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	load(t, c, reg)

	c.Markers().Add(Marker{Severity: SeverityWarning, Message: "w", StartLineNumber: 2, StartColumn: 1, EndLineNumber: 2, EndColumn: 3})
	flush(t, c)

	got := host.ran("setModelMarkers")
	if len(got) != 1 || !strings.HasPrefix(got[0], `setModelMarkers(element,"CodeEditor",[{`) ||
		!strings.Contains(got[0], `"severity":4`) || !strings.Contains(got[0], `"message":"w"`) {
		t.Fatalf("setModelMarkers = %v", got)
	}
}

func TestControl_InternalExceptionOnFailedInvoke(t *testing.T) {
	host := &fakeHost{failOn: "updateContent"}
	c, reg := newTestControl(t, host)

	errs := make(chan error, 4)
	c.OnInternalException(func(err error) { errs <- err })
	c.SetText("boom")
	load(t, c, reg)

	select {
	case err := <-errs:
		if !errors.Is(err, bridgeerrors.New(bridgeerrors.PhaseInvoke, bridgeerrors.KindScript).Build()) {
			t.Errorf("err = %v, want invoke/script", err)
		}
	default:
		t.Fatal("no internal exception published")
	}
	if !c.IsEditorLoaded() {
		t.Error("failed replay blocked loading")
	}
}

func TestControl_LoadedHandlerSetsApplyImmediately(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)

	c.OnEditorLoaded(func(c *Control) {
		if c.Gate().State() != readiness.Ready {
			t.Errorf("state in loaded handler = %v", c.Gate().State())
		}
		c.SetText("from handler")
	})
	load(t, c, reg)
	flush(t, c)

	if got := host.ran("updateContent"); len(got) != 1 || got[0] != `updateContent(element,"from handler");` {
		t.Errorf("updateContent = %v", got)
	}
	if c.Gate().Pending() != 0 {
		t.Errorf("Pending = %d", c.Gate().Pending())
	}
}

func TestControl_GetPosition(t *testing.T) {
	host := &fakeHost{results: map[string]string{".getPosition()": `{"lineNumber":3,"column":7}`}}
	c, reg := newTestControl(t, host)

	if got := c.GetPosition(context.Background()); got != (Position{}) {
		t.Errorf("detached GetPosition = %+v", got)
	}
	load(t, c, reg)

	if got := c.GetPosition(context.Background()); got != (Position{LineNumber: 3, Column: 7}) {
		t.Errorf("GetPosition = %+v", got)
	}
	c.RevealLine(context.Background(), 12)
	if got := host.ran(editorScript + ".revealLine"); len(got) != 1 || got[0] != editorScript+".revealLine(12);" {
		t.Errorf("revealLine = %v", got)
	}
}

func TestControl_HoverProvider(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)

	c.RegisterHoverProvider("python", func(_ context.Context, pos Position) (*Hover, error) {
		return &Hover{Contents: []MarkdownString{{Value: "line " + string(rune('0'+pos.LineNumber))}}}, nil
	})
	load(t, c, reg)

	if got := host.ran("registerHoverProvider"); len(got) != 1 || got[0] != `registerHoverProvider(element,"python");` {
		t.Fatalf("registerHoverProvider = %v", got)
	}

	params := []string{codec.Sanitize(`{"lineNumber":4,"column":1}`)}
	result, err := reg.CallEvent(context.Background(), c.Handle(), "HoverProvider.python", params)
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("hover result is nil")
	}
	if got := codec.Desanitize(*result); got != `{"contents":[{"value":"line 4"}]}` {
		t.Errorf("hover = %s", got)
	}

	result, err = reg.CallEvent(context.Background(), c.Handle(), "HoverProvider.go", params)
	if err != nil || result != nil {
		t.Errorf("unregistered provider = %v, %v", result, err)
	}
}

func TestControl_CodeActionProvider(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	load(t, c, reg)

	c.RegisterCodeActionProvider("go", func(_ context.Context, rng Range, actx CodeActionContext) (*CodeActionList, error) {
		if len(actx.Markers) != 1 {
			return nil, nil
		}
		return &CodeActionList{Actions: []CodeAction{{
			Title: "fix " + actx.Markers[0].Message,
			Edit: &WorkspaceEdit{Edits: []WorkspaceTextEdit{{
				TextEdit: TextEdit{Range: rng, Text: "ok"},
			}}},
		}}}, nil
	})
	flush(t, c)

	params := []string{
		codec.Sanitize(`{"startLineNumber":1,"startColumn":1,"endLineNumber":1,"endColumn":3}`),
		codec.Sanitize(`{"markers":[{"severity":8,"message":"typo","startLineNumber":1,"startColumn":1,"endLineNumber":1,"endColumn":3}]}`),
	}
	result, err := reg.CallEvent(context.Background(), c.Handle(), "ProvideCodeActions.go", params)
	if err != nil || result == nil {
		t.Fatalf("CallEvent = %v, %v", result, err)
	}
	if got := codec.Desanitize(*result); !strings.Contains(got, `"title":"fix typo"`) || !strings.Contains(got, `"text":"ok"`) {
		t.Errorf("code actions = %s", got)
	}

	_, err = reg.CallEvent(context.Background(), c.Handle(), "ProvideCodeActions.go", params[:1])
	if !errors.Is(err, bridgeerrors.New(bridgeerrors.PhaseAccessor, bridgeerrors.KindInvalidInput).Build()) {
		t.Errorf("missing parameter err = %v", err)
	}
}

func TestControl_AddCommand(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	load(t, c, reg)

	got := make(chan []any, 1)
	name := c.AddCommand(2048|33, func(args []any) { got <- args }, "")
	if name != "Command1" {
		t.Fatalf("name = %s", name)
	}
	flush(t, c)
	if calls := host.ran("addCommand"); len(calls) != 1 || calls[0] != `addCommand(element,2081,"Command1",null);` {
		t.Fatalf("addCommand = %v", calls)
	}

	found, err := reg.CallActionWithParameters(c.Handle(), name, []string{"1", codec.Sanitize(`"x"`), "plain"})
	if err != nil || !found {
		t.Fatalf("CallActionWithParameters = %v, %v", found, err)
	}
	select {
	case args := <-got:
		if len(args) != 3 || args[0] != float64(1) || args[1] != "x" || args[2] != "plain" {
			t.Errorf("args = %#v", args)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("command never ran")
	}
}

func TestControl_AddAction(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)

	ran := make(chan *Control, 1)
	c.AddAction(ActionDescriptor{ID: "format", Label: "Format", Run: func(c *Control) { ran <- c }})
	load(t, c, reg)

	if calls := host.ran("addAction"); len(calls) != 1 || calls[0] != `addAction(element,{"id":"format","label":"Format"});` {
		t.Fatalf("addAction = %v", calls)
	}
	found, err := reg.CallAction(c.Handle(), "Actionformat")
	if err != nil || !found {
		t.Fatalf("CallAction = %v, %v", found, err)
	}
	select {
	case got := <-ran:
		if got != c {
			t.Error("action received another control")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("action never ran")
	}
}

func TestControl_KeyDown(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	load(t, c, reg)

	c.OnKeyDown(func(e *listener.KeyEvent) {
		e.Handled = e.Ctrl && e.KeyCode == 49
	})
	result, err := reg.CallEvent(context.Background(), c.Handle(), "KeyDown", []string{"49", "true"})
	if err != nil || result == nil || *result != "true" {
		t.Fatalf("KeyDown = %v, %v", result, err)
	}
}

func TestControl_AttachFailureRollsBack(t *testing.T) {
	host := &fakeHost{attachErr: errors.New("no view")}
	c, reg := newTestControl(t, host)

	if err := c.Attach(context.Background()); err == nil {
		t.Fatal("Attach succeeded")
	}
	if reg.Len() != 0 {
		t.Errorf("registry holds %d accessors", reg.Len())
	}
	if c.Gate().State() != readiness.Detached {
		t.Errorf("state = %v", c.Gate().State())
	}

	host.mu.Lock()
	host.attachErr = nil
	host.mu.Unlock()
	load(t, c, reg)
}

func TestControl_DetachAndReattach(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	c.SetDecorations([]Decoration{{}})
	load(t, c, reg)
	first := c.Handle()

	if err := c.Detach(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.IsEditorLoaded() {
		t.Error("IsEditorLoaded after detach")
	}
	if _, err := reg.CallAction(first, editorbridge.LoadedAction); !errors.Is(err, bridgeerrors.StaleHandle(bridgeerrors.PhaseAccessor, 0, "")) {
		t.Errorf("stale handle err = %v", err)
	}

	c.SetText("while detached")
	load(t, c, reg)
	if c.Handle() == first {
		t.Error("reattach reused the handle")
	}
	if got := host.ran("updateContent"); len(got) != 1 || got[0] != `updateContent(element,"while detached");` {
		t.Errorf("updateContent = %v", got)
	}
	if got := host.ran("updateDecorations"); len(got) != 2 {
		t.Errorf("decorations not reapplied to the new engine: %v", got)
	}
}

func TestControl_CloseIdempotent(t *testing.T) {
	host := &fakeHost{}
	c, reg := newTestControl(t, host)
	load(t, c, reg)
	h := c.Handle()

	if err := c.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 0 {
		t.Errorf("registry holds %d accessors", reg.Len())
	}
	host.mu.Lock()
	detached := append([]editorbridge.Handle(nil), host.detached...)
	host.mu.Unlock()
	if len(detached) != 1 || detached[0] != h {
		t.Errorf("host detached %v", detached)
	}

	c.SetText("ignored")
	if c.Gate().Pending() != 0 {
		t.Error("closed control queued a change")
	}
	if err := c.Attach(context.Background()); !errors.Is(err, bridgeerrors.Disposed(bridgeerrors.PhaseHost, "")) {
		t.Errorf("Attach after Close = %v", err)
	}
}
