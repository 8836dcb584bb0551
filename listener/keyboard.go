package listener

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/editor-bridge/accessor"
	"github.com/wippyai/editor-bridge/errors"
	"github.com/wippyai/editor-bridge/internal/notify"
)

// KeyDownEvent is the event the engine raises for every key press.
const KeyDownEvent = "KeyDown"

// KeyEvent is a key press reported by the engine. A handler sets Handled
// to stop the engine's own handling of the key.
type KeyEvent struct {
	KeyCode int
	Ctrl    bool
	Shift   bool
	Alt     bool
	Meta    bool
	Handled bool
}

// KeyboardListener turns KeyDown calls from the engine into KeyEvents.
type KeyboardListener struct {
	handlers notify.Set[*KeyEvent]
}

// NewKeyboardListener creates a listener with no handlers.
func NewKeyboardListener() *KeyboardListener {
	return &KeyboardListener{}
}

// Register exposes the listener on a.
func (k *KeyboardListener) Register(a *accessor.Accessor) {
	a.RegisterEvent(KeyDownEvent, k.keyDown)
}

// OnKeyDown adds a handler. Handlers run in registration order on the
// control's dispatcher.
func (k *KeyboardListener) OnKeyDown(fn func(*KeyEvent)) (unsubscribe func()) {
	return k.handlers.Add(fn)
}

// KeyDown delivers e to every handler and reports whether one handled it.
func (k *KeyboardListener) KeyDown(e *KeyEvent) bool {
	k.handlers.Emit(e)
	return e.Handled
}

// keyDown takes [keyCode, ctrl, shift, alt, meta]; missing modifiers are
// false.
func (k *KeyboardListener) keyDown(_ context.Context, params []string) (*string, error) {
	e, err := parseKeyEvent(params)
	if err != nil {
		Logger().Debug("malformed key event", zap.Strings("params", params), zap.Error(err))
		return nil, err
	}
	result := strconv.FormatBool(k.KeyDown(e))
	return &result, nil
}

func parseKeyEvent(params []string) (*KeyEvent, error) {
	if len(params) == 0 {
		return nil, errors.InvalidInput(errors.PhaseAccessor, "key event without key code")
	}
	code, err := strconv.Atoi(params[0])
	if err != nil {
		return nil, errors.New(errors.PhaseAccessor, errors.KindInvalidInput).
			Name(KeyDownEvent).
			Detail("key code %q", params[0]).
			Cause(err).
			Build()
	}

	e := &KeyEvent{KeyCode: code}
	mods := []*bool{&e.Ctrl, &e.Shift, &e.Alt, &e.Meta}
	for i, dst := range mods {
		if i+1 >= len(params) {
			break
		}
		v, err := strconv.ParseBool(params[i+1])
		if err != nil {
			return nil, errors.New(errors.PhaseAccessor, errors.KindInvalidInput).
				Name(KeyDownEvent).
				Detail("modifier %d %q", i, params[i+1]).
				Cause(err).
				Build()
		}
		*dst = v
	}
	return e, nil
}
