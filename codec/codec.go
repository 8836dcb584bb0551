package codec

import "strings"

// Markers is the fixed, ordered set of characters replaced by Sanitize.
const Markers = `%&\"'{}:,`

var (
	// '%' is listed first and the replacer never rescans its output, so the
	// codes produced for later characters are not re-encoded.
	sanitizer = strings.NewReplacer(
		"%", "%37",
		"&", "%38",
		`\`, "%92",
		`"`, "%34",
		"'", "%39",
		"{", "%123",
		"}", "%125",
		":", "%58",
		",", "%44",
	)

	// Codes are prefix-free and '%' comes back last, so a decoded '%' can
	// never start a new marker.
	desanitizer = strings.NewReplacer(
		"%38", "&",
		"%92", `\`,
		"%34", `"`,
		"%39", "'",
		"%123", "{",
		"%125", "}",
		"%58", ":",
		"%44", ",",
		"%37", "%",
	)
)

// quoteArtifact is the doubled-backslash-quote left behind when a sanitized
// payload passes through a second JSON encoding on the script side.
const quoteArtifact = `\\"`

// Sanitize replaces every marker character with '%' followed by its decimal
// character code.
func Sanitize(s string) string {
	if !strings.ContainsAny(s, Markers) {
		return s
	}
	return sanitizer.Replace(s)
}

// Desanitize reverses Sanitize. The quote artifact is collapsed on the raw
// input first; sanitized text never contains a raw backslash or quote, so
// the collapse cannot disturb a genuine round trip.
func Desanitize(s string) string {
	if strings.Contains(s, quoteArtifact) {
		s = strings.ReplaceAll(s, quoteArtifact, `"`)
	}
	if !strings.Contains(s, "%") {
		return s
	}
	return desanitizer.Replace(s)
}

// SanitizeOptional is Sanitize over a nullable string.
func SanitizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	out := Sanitize(*s)
	return &out
}

// DesanitizeOptional is Desanitize over a nullable string.
func DesanitizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	out := Desanitize(*s)
	return &out
}

// DesanitizeAll desanitizes each element into a new slice.
func DesanitizeAll(params []string) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = Desanitize(p)
	}
	return out
}
