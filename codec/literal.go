package codec

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/wippyai/editor-bridge/errors"
)

// ScriptLiteral renders one invocation argument as script source text.
//
// With serialize set, numbers render as their literal text, strings as a
// quoted and escaped string literal and everything else as a JSON document
// with null members omitted. Without it the plain string form is used.
func ScriptLiteral(v any, serialize bool) (string, error) {
	if !serialize {
		if v == nil {
			return "null", nil
		}
		return fmt.Sprint(v), nil
	}

	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return quote(x)
	case *string:
		if x == nil {
			return "null", nil
		}
		return quote(*x)
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return formatFloat(float64(x), 32), nil
	case float64:
		return formatFloat(x, 64), nil
	case json.Number:
		return x.String(), nil
	default:
		return MarshalJSON(v)
	}
}

// ScriptLiterals renders each argument with ScriptLiteral.
func ScriptLiterals(args []any, serialize bool) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		lit, err := ScriptLiteral(a, serialize)
		if err != nil {
			return nil, errors.New(errors.PhaseCodec, errors.KindInvalidInput).
				Detail("argument %d", i).
				Cause(err).
				Build()
		}
		out[i] = lit
	}
	return out, nil
}

func quote(s string) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", errors.Wrap(errors.PhaseCodec, errors.KindInvalidInput, err, "quote string")
	}
	return string(data), nil
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}
