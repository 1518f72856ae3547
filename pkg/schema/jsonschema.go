package schema

import (
	"strings"
)

// ToJSONSchema converts the schema to JSON Schema form for providers
// with constrained structured output.
//
// Every field is marked required even though the source data may be
// absent: this forces the model to emit every key, using null instead
// of omitting it, which keeps the output shape stable. The generic
// "object" token degrades to a descriptive string field because some
// providers reject object schemas without enumerated sub-properties;
// consumers must treat object-typed output as an opaque JSON blob.
func (s Schema) ToJSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))

	for _, name := range s.FieldNames() {
		properties[name] = typeToJSONSchema(s.Type(name))
		required = append(required, name)
	}

	out := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false, // required for strict mode
	}

	if s.Description != "" {
		out["description"] = s.Description
	}

	return out
}

// typeToJSONSchema maps a parsed field type to a JSON Schema node.
func typeToJSONSchema(t FieldType) map[string]any {
	switch t.Kind {
	case KindNumber:
		return map[string]any{"type": "number"}
	case KindInteger:
		return map[string]any{"type": "integer"}
	case KindBoolean:
		return map[string]any{"type": "boolean"}
	case KindArray:
		item := FieldType{Kind: KindString}
		if t.Elem != nil {
			item = *t.Elem
		}
		return map[string]any{
			"type":  "array",
			"items": typeToJSONSchema(item),
		}
	case KindObject:
		return map[string]any{
			"type":        "string",
			"description": "JSON-encoded object",
		}
	case KindText:
		return map[string]any{"type": "string"}
	case KindDate:
		return map[string]any{"type": "string", "format": "date"}
	case KindURL:
		return map[string]any{"type": "string", "format": "uri"}
	case KindEmail:
		return map[string]any{"type": "string", "format": "email"}
	default:
		return map[string]any{"type": "string"}
	}
}

// ToPromptDescription generates a human-readable field listing for
// the LLM prompt.
func (s Schema) ToPromptDescription() string {
	var sb strings.Builder

	sb.WriteString("## Fields to Extract\n")
	for _, name := range s.FieldNames() {
		sb.WriteString("- ")
		sb.WriteString(name)
		sb.WriteString(" (")
		sb.WriteString(s.Type(name).String())
		sb.WriteString(")\n")
	}

	return sb.String()
}
