package codec

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"

	"github.com/wippyai/editor-bridge/errors"
)

// InternalErrorMarker prefixes results of script executions that failed
// inside the engine's own exception handler.
const InternalErrorMarker = "wv_internal_error"

var nullToken = []byte("null")

// MarshalJSON encodes v as JSON with null object members omitted at every
// depth. A nil v encodes as "null".
func MarshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(errors.PhaseCodec, errors.KindInvalidInput, err, "marshal json")
	}
	if !bytes.Contains(data, nullToken) || !(data[0] == '{' || data[0] == '[') {
		return string(data), nil
	}

	var tree any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&tree); err != nil {
		return "", errors.Wrap(errors.PhaseCodec, errors.KindDecode, err, "reparse json")
	}

	pruned, err := json.Marshal(pruneNulls(tree))
	if err != nil {
		return "", errors.Wrap(errors.PhaseCodec, errors.KindInvalidInput, err, "marshal pruned json")
	}
	return string(pruned), nil
}

// pruneNulls drops null members from objects. Nulls inside arrays are kept
// so element positions survive.
func pruneNulls(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			if child == nil {
				delete(x, k)
				continue
			}
			x[k] = pruneNulls(child)
		}
		return x
	case []any:
		for i, child := range x {
			x[i] = pruneNulls(child)
		}
		return x
	default:
		return v
	}
}

// IsEmptyResult reports whether a script result carries no value.
func IsEmptyResult(result string) bool {
	switch strings.TrimSpace(result) {
	case "", `""`, "null", "undefined":
		return true
	}
	return false
}

// DecodeResult decodes a script result into T. Empty results decode to the
// zero value; results carrying InternalErrorMarker are reported as script
// errors.
func DecodeResult[T any](result string) (T, error) {
	var out T
	if strings.Contains(result, InternalErrorMarker) {
		return out, errors.New(errors.PhaseInvoke, errors.KindScript).
			Detail("engine reported internal error").
			Value(result).
			Build()
	}
	if IsEmptyResult(result) {
		return out, nil
	}
	if err := json.Unmarshal([]byte(result), &out); err != nil {
		return out, errors.Wrap(errors.PhaseCodec, errors.KindDecode, err, "decode script result")
	}
	return out, nil
}
