package expressions

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Substitute scans text for {{name}} placeholders (surrounding whitespace
// inside the braces is trimmed) and replaces each with the current value of
// name when bound. Unbound placeholders are left untouched so authors can
// spot them in transcripts.
func Substitute(text string, vars map[string]any) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	var result strings.Builder
	result.Grow(len(text))

	i := 0
	for i < len(text) {
		idx := strings.Index(text[i:], "{{")
		if idx == -1 {
			result.WriteString(text[i:])
			break
		}

		result.WriteString(text[i : i+idx])
		start := i + idx + 2

		end := strings.Index(text[start:], "}}")
		if end == -1 {
			// Unterminated placeholder: emit the rest verbatim.
			result.WriteString(text[i+idx:])
			break
		}
		end += start

		name := strings.TrimSpace(text[start:end])
		if val, ok := vars[name]; ok && name != "" {
			result.WriteString(stringify(val))
		} else {
			result.WriteString(text[i+idx : end+2])
		}

		i = end + 2
	}

	return result.String()
}

// SubstituteAny applies Substitute to string values; everything else passes
// through unchanged.
func SubstituteAny(value any, vars map[string]any) any {
	if s, ok := value.(string); ok {
		return Substitute(s, vars)
	}
	return value
}

// stringify renders a variable value the way it should appear in user-facing
// text: strings bare, scalars via fmt, composites as JSON.
func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
