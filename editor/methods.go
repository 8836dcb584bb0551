package editor

import (
	"context"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/wippyai/editor-bridge/accessor"
	"github.com/wippyai/editor-bridge/codec"
	"github.com/wippyai/editor-bridge/errors"
	"github.com/wippyai/editor-bridge/readiness"
	"github.com/wippyai/editor-bridge/script"
)

// HoverFunc computes the hover shown at a position. A nil hover shows
// nothing.
type HoverFunc func(ctx context.Context, pos Position) (*Hover, error)

// CodeActionFunc computes the code actions offered for a range.
type CodeActionFunc func(ctx context.Context, rng Range, actx CodeActionContext) (*CodeActionList, error)

// Focus gives the engine keyboard focus.
func (c *Control) Focus(ctx context.Context) {
	c.run(ctx, editorScript+".focus();")
}

// RevealLine scrolls line into view.
func (c *Control) RevealLine(ctx context.Context, line int) {
	c.run(ctx, editorScript+".revealLine("+strconv.Itoa(line)+");")
}

// GetPosition returns the cursor position, or the zero Position when the
// engine cannot be reached.
func (c *Control) GetPosition(ctx context.Context) Position {
	ch := c.currentChannel()
	if ch == nil {
		return Position{}
	}
	return script.RunAs[Position](ctx, ch, editorScript+".getPosition();")
}

// SetPosition moves the cursor.
func (c *Control) SetPosition(ctx context.Context, pos Position) {
	lit, err := codec.ScriptLiteral(pos, true)
	if err != nil {
		c.internalException(err)
		return
	}
	c.run(ctx, editorScript+".setPosition("+lit+");")
}

func (c *Control) run(ctx context.Context, stmt string) string {
	ch := c.currentChannel()
	if ch == nil {
		c.logger.Debug("run skipped, editor detached")
		return ""
	}
	return ch.Run(ctx, stmt)
}

// extend records a member registration applied to the current accessor and
// to every accessor created by a later Attach.
func (c *Control) extend(name string, register func(*accessor.Accessor)) {
	c.xmu.Lock()
	replaced := false
	for i, ext := range c.extensions {
		if ext.name == name {
			c.extensions[i].register = register
			replaced = true
			break
		}
	}
	if !replaced {
		c.extensions = append(c.extensions, extension{name: name, register: register})
	}
	c.xmu.Unlock()

	c.amu.Lock()
	acc := c.acc
	c.amu.Unlock()
	if acc != nil {
		register(acc)
	}
}

// AddAction adds an engine action. Its Run callback is called on the
// control's queue when the user triggers the action.
func (c *Control) AddAction(action ActionDescriptor) {
	name := "Action" + action.ID
	c.extend(name, func(acc *accessor.Accessor) {
		acc.RegisterAction(name, func() {
			if action.Run != nil {
				action.Run(c)
			}
		})
	})
	c.invokeLater(readiness.PriorityDecorations, "addAction", action)
}

// AddCommand binds keybinding to handler and returns the command name. The
// handler receives the engine's arguments decoded from JSON. A non-empty
// precondition is a context key expression limiting when the command runs.
func (c *Control) AddCommand(keybinding int, handler func(args []any), precondition string) string {
	name := "Command" + strconv.FormatInt(c.commandIndex.Add(1), 10)
	c.extend(name, func(acc *accessor.Accessor) {
		acc.RegisterActionWithParameters(name, func(params []string) {
			handler(decodeArgs(params))
		})
	})

	var cond *string
	if precondition != "" {
		cond = &precondition
	}
	c.invokeLater(readiness.PriorityDecorations, "addCommand", keybinding, name, cond)
	return name
}

func decodeArgs(params []string) []any {
	args := make([]any, len(params))
	for i, p := range params {
		var v any
		if err := json.Unmarshal([]byte(p), &v); err != nil {
			v = p
		}
		args[i] = v
	}
	return args
}

// RegisterHoverProvider provides hovers for language. The engine awaits fn
// through the HoverProvider.<language> event.
func (c *Control) RegisterHoverProvider(language string, fn HoverFunc) {
	name := "HoverProvider." + language
	c.extend(name, func(acc *accessor.Accessor) {
		acc.RegisterEvent(name, func(ctx context.Context, params []string) (*string, error) {
			var pos Position
			if err := decodeParam(name, params, 0, &pos); err != nil {
				return nil, err
			}
			hover, err := fn(ctx, pos)
			if err != nil || hover == nil {
				return nil, err
			}
			return encodeResult(hover)
		})
	})
	c.invokeLater(readiness.PriorityDecorations, "registerHoverProvider", language)
}

// RegisterCodeActionProvider provides code actions for language through
// the ProvideCodeActions.<language> event.
func (c *Control) RegisterCodeActionProvider(language string, fn CodeActionFunc) {
	name := "ProvideCodeActions." + language
	c.extend(name, func(acc *accessor.Accessor) {
		acc.RegisterEvent(name, func(ctx context.Context, params []string) (*string, error) {
			var (
				rng  Range
				actx CodeActionContext
			)
			if err := decodeParam(name, params, 0, &rng); err != nil {
				return nil, err
			}
			if err := decodeParam(name, params, 1, &actx); err != nil {
				return nil, err
			}
			list, err := fn(ctx, rng, actx)
			if err != nil || list == nil {
				return nil, err
			}
			return encodeResult(list)
		})
	})
	c.invokeLater(readiness.PriorityDecorations, "registerCodeActionProvider", language)
}

func decodeParam(event string, params []string, i int, dst any) error {
	if i >= len(params) {
		return errors.New(errors.PhaseAccessor, errors.KindInvalidInput).
			Name(event).
			Detail("missing parameter %d", i).
			Build()
	}
	if err := json.Unmarshal([]byte(params[i]), dst); err != nil {
		Logger().Debug("undecodable event parameter",
			zap.String("event", event),
			zap.Int("index", i),
			zap.Error(err))
		return errors.New(errors.PhaseAccessor, errors.KindDecode).
			Name(event).
			Value(params[i]).
			Cause(err).
			Build()
	}
	return nil
}

func encodeResult(v any) (*string, error) {
	data, err := codec.MarshalJSON(v)
	if err != nil {
		return nil, err
	}
	return &data, nil
}
