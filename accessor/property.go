package accessor

import (
	"github.com/goccy/go-json"

	"github.com/wippyai/editor-bridge/errors"
)

// Property is a named, script-visible property of a native object.
// Set is nil for read-only properties.
type Property struct {
	Get func() any
	Set func(v any) error
}

// ReadOnly reports whether the property rejects writes.
func (p Property) ReadOnly() bool {
	return p.Set == nil
}

// Prop builds a Property from typed accessors. The setter accepts a T, a
// *T, or a JSON document (as string) decoding to T; a string property
// accepts any string verbatim. Pass a nil set for a read-only property.
func Prop[T any](get func() T, set func(T)) Property {
	p := Property{
		Get: func() any { return get() },
	}
	if set != nil {
		p.Set = func(v any) error {
			typed, err := convert[T](v)
			if err != nil {
				return err
			}
			set(typed)
			return nil
		}
	}
	return p
}

func convert[T any](v any) (T, error) {
	var zero T
	switch x := v.(type) {
	case T:
		return x, nil
	case *T:
		if x == nil {
			return zero, nil
		}
		return *x, nil
	case string:
		var out T
		if err := json.Unmarshal([]byte(x), &out); err != nil {
			return zero, errors.New(errors.PhaseAccessor, errors.KindDecode).
				Detail("decode %q as %T", x, zero).
				Cause(err).
				Build()
		}
		return out, nil
	case nil:
		return zero, nil
	}
	return zero, errors.New(errors.PhaseAccessor, errors.KindInvalidInput).
		Value(v).
		Detail("cannot assign %T to %T", v, zero).
		Build()
}
