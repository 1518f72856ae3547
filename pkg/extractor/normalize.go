package extractor

import (
	"strings"

	"github.com/pagesift/pagesift/pkg/schema"
)

// Normalize cleans a parsed provider response and conforms it to the
// schema: string literals equal to "null" become real nulls (models
// emit them when forced to fill a required key), and every schema
// field is guaranteed present at the top level, defaulting to null.
// The output shape is therefore stable regardless of what the model
// omitted.
func Normalize(data map[string]any, s schema.Schema) map[string]any {
	out := make(map[string]any, len(s.Fields))

	for k, v := range data {
		out[k] = cleanValue(v)
	}

	for name := range s.Fields {
		if _, ok := out[name]; !ok {
			out[name] = nil
		}
	}

	return out
}

// cleanValue recursively replaces "null" string literals with nil.
func cleanValue(v any) any {
	switch val := v.(type) {
	case string:
		if strings.EqualFold(strings.TrimSpace(val), "null") {
			return nil
		}
		return val
	case []any:
		cleaned := make([]any, len(val))
		for i, item := range val {
			cleaned[i] = cleanValue(item)
		}
		return cleaned
	case map[string]any:
		cleaned := make(map[string]any, len(val))
		for k, item := range val {
			cleaned[k] = cleanValue(item)
		}
		return cleaned
	default:
		return v
	}
}
