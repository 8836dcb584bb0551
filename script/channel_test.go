package script

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	editorbridge "github.com/wippyai/editor-bridge"
	bridgeerrors "github.com/wippyai/editor-bridge/errors"
)

type fakeGate struct {
	ready, attached bool
}

func (g fakeGate) Ready() bool    { return g.ready }
func (g fakeGate) Attached() bool { return g.attached || g.ready }

type fakeHost struct {
	mu      sync.Mutex
	scripts []string
	result  string
	err     error
}

func (h *fakeHost) Attach(context.Context, editorbridge.Handle, editorbridge.Bridge) error {
	return nil
}
func (h *fakeHost) Start(context.Context, editorbridge.Handle) error  { return nil }
func (h *fakeHost) Detach(context.Context, editorbridge.Handle) error { return nil }
func (h *fakeHost) Close(context.Context) error                      { return nil }

func (h *fakeHost) Run(_ context.Context, _ editorbridge.Handle, script string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scripts = append(h.scripts, script)
	return h.result, h.err
}

func (h *fakeHost) ran() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.scripts...)
}

func TestBuildInvocation(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		args      []any
		serialize bool
		want      string
	}{
		{"no args", "layout", nil, true, "layout(element);"},
		{"string", "updateContent", []any{"hello"}, true, `updateContent(element,"hello");`},
		{"escaped string", "updateContent", []any{"a\"b\n"}, true, `updateContent(element,"a\"b\n");`},
		{"number", "revealLine", []any{42}, true, "revealLine(element,42);"},
		{"mixed", "setPosition", []any{3, 7.5, true}, true, "setPosition(element,3,7.5,true);"},
		{"object", "updateOptions", []any{map[string]any{"readOnly": true, "x": nil}}, true, `updateOptions(element,{"readOnly":true});`},
		{"plain", "changeTheme", []any{"vs-dark", false}, false, "changeTheme(element,vs-dark,false);"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildInvocation(tt.method, tt.args, tt.serialize)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("BuildInvocation = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestChannel_InvokeRequiresReady(t *testing.T) {
	host := &fakeHost{}
	ch := New(host, 1, fakeGate{attached: true})

	if got := ch.Invoke(context.Background(), "updateContent", "x"); got != "" {
		t.Fatalf("Invoke before ready = %q", got)
	}
	if len(host.ran()) != 0 {
		t.Fatal("engine invoked before ready")
	}
}

func TestChannel_RunRequiresAttached(t *testing.T) {
	host := &fakeHost{result: "true"}

	detached := New(host, 1, fakeGate{})
	if got := detached.Run(context.Background(), "element.focus()"); got != "" {
		t.Fatalf("Run while detached = %q", got)
	}

	loading := New(host, 1, fakeGate{attached: true})
	if got := loading.Run(context.Background(), "element.focus()"); got != "true" {
		t.Fatalf("Run while loading = %q", got)
	}
	if scripts := host.ran(); len(scripts) != 1 || scripts[0] != "element.focus()" {
		t.Fatalf("scripts = %v", scripts)
	}
}

func TestChannel_Invoke(t *testing.T) {
	host := &fakeHost{result: `{"lineNumber":3,"column":4}`}
	ch := New(host, 1, fakeGate{ready: true})

	type position struct {
		LineNumber int `json:"lineNumber"`
		Column     int `json:"column"`
	}
	got := InvokeAs[position](context.Background(), ch, "getPosition")
	if got.LineNumber != 3 || got.Column != 4 {
		t.Fatalf("InvokeAs = %+v", got)
	}
	if scripts := host.ran(); scripts[0] != "getPosition(element);" {
		t.Fatalf("script = %s", scripts[0])
	}
}

func TestChannel_EmptyResults(t *testing.T) {
	for _, result := range []string{"", `""`, "null"} {
		host := &fakeHost{result: result}
		ch := New(host, 1, fakeGate{ready: true})

		failed := false
		ch.OnInternalException(func(error) { failed = true })

		if got := RunAs[int](context.Background(), ch, "x"); got != 0 {
			t.Fatalf("RunAs(%q) = %d", result, got)
		}
		if failed {
			t.Fatalf("empty result %q reported as failure", result)
		}
	}
}

func TestChannel_FailuresArePublished(t *testing.T) {
	tests := []struct {
		name   string
		result string
		err    error
		kind   bridgeerrors.Kind
	}{
		{"script throws", "", errors.New("ReferenceError: foo is not defined"), bridgeerrors.KindScript},
		{"host closed", "", bridgeerrors.Disposed(bridgeerrors.PhaseHost, "goja host"), bridgeerrors.KindTransport},
		{"internal error marker", `"wv_internal_error: boom"`, nil, bridgeerrors.KindScript},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &fakeHost{result: tt.result, err: tt.err}
			ch := New(host, 7, fakeGate{ready: true})

			var got []error
			unsubscribe := ch.OnInternalException(func(err error) { got = append(got, err) })

			if res := ch.Invoke(context.Background(), "updateContent", "x"); res != "" {
				t.Fatalf("failed Invoke returned %q", res)
			}
			if len(got) != 1 {
				t.Fatalf("published %d errors, want 1", len(got))
			}
			if !errors.Is(got[0], &bridgeerrors.Error{Phase: bridgeerrors.PhaseInvoke, Kind: tt.kind}) {
				t.Fatalf("published %v, want kind %s", got[0], tt.kind)
			}

			unsubscribe()
			ch.Invoke(context.Background(), "updateContent", "x")
			if len(got) != 1 {
				t.Fatal("unsubscribed observer still notified")
			}
		})
	}
}

func TestChannel_DecodeFailurePublished(t *testing.T) {
	host := &fakeHost{result: "not json"}
	ch := New(host, 1, fakeGate{ready: true})

	var got error
	ch.OnInternalException(func(err error) { got = err })

	if v := InvokeAs[int](context.Background(), ch, "getLineCount"); v != 0 {
		t.Fatalf("InvokeAs = %d", v)
	}
	if got == nil || !strings.Contains(got.Error(), "decode") {
		t.Fatalf("published %v", got)
	}
}

func TestChannel_BadArgumentPublished(t *testing.T) {
	host := &fakeHost{}
	ch := New(host, 1, fakeGate{ready: true})

	var got error
	ch.OnInternalException(func(err error) { got = err })

	ch.Invoke(context.Background(), "updateOptions", make(chan int))
	if got == nil {
		t.Fatal("unencodable argument not reported")
	}
	if len(host.ran()) != 0 {
		t.Fatal("engine invoked with a broken statement")
	}
}
