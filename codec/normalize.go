package codec

import (
	"strings"

	"github.com/goccy/go-json"
)

// NormalizeInboundJSON prepares a sanitized JSON document written by the
// engine for typed deserialization. Surrounding whitespace is dropped and a
// document that was encoded twice (a JSON string holding an object or array)
// is unwrapped once.
func NormalizeInboundJSON(s string) string {
	v := strings.TrimSpace(Desanitize(s))
	if !isQuoted(v) {
		return v
	}

	var inner string
	if err := json.Unmarshal([]byte(v), &inner); err != nil {
		return v
	}
	inner = strings.TrimSpace(inner)
	if strings.HasPrefix(inner, "{") || strings.HasPrefix(inner, "[") {
		if json.Valid([]byte(inner)) {
			return inner
		}
	}
	return v
}

func isQuoted(v string) bool {
	return len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"'
}
