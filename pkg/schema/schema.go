package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Schema defines the structure for data extraction.
type Schema struct {
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      map[string]string `json:"fields" yaml:"fields"`
}

// New creates a validated, normalized schema from a field map.
func New(fields map[string]string) (Schema, error) {
	s := Schema{Fields: fields}
	return s.Normalize()
}

// FromFile loads a schema from a JSON or YAML file.
func FromFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read schema file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FromJSON(data)
	case ".yaml", ".yml":
		return FromYAML(data)
	default:
		return Schema{}, fmt.Errorf("unsupported schema file format: %s", ext)
	}
}

// FromJSON creates a schema from JSON data. Both the wrapped form
// {"fields": {...}} and a bare field map are accepted.
func FromJSON(data []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse JSON schema: %w", err)
	}
	if s.Fields == nil {
		var bare map[string]string
		if err := json.Unmarshal(data, &bare); err == nil {
			s.Fields = bare
		}
	}
	return s.Normalize()
}

// FromYAML creates a schema from YAML data.
func FromYAML(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse YAML schema: %w", err)
	}
	if s.Fields == nil {
		var bare map[string]string
		if err := yaml.Unmarshal(data, &bare); err == nil {
			s.Fields = bare
		}
	}
	return s.Normalize()
}

// Normalize validates the schema and returns a copy with trimmed
// field names (case preserved) and trimmed, lower-cased type tokens.
// Invalid schemas return a *ValidationError naming the offending
// field and the full allowed type set.
func (s Schema) Normalize() (Schema, error) {
	if len(s.Fields) == 0 {
		return Schema{}, &ValidationError{Message: "schema must contain at least one field"}
	}

	out := Schema{
		Name:        s.Name,
		Description: s.Description,
		Fields:      make(map[string]string, len(s.Fields)),
	}

	for name, token := range s.Fields {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return Schema{}, &ValidationError{Message: "field name must not be blank"}
		}
		if strings.TrimSpace(token) == "" {
			return Schema{}, &ValidationError{Field: trimmed, Message: "type token must not be blank"}
		}
		ft, err := ParseType(token)
		if err != nil {
			return Schema{}, &ValidationError{Field: trimmed, Message: err.Error()}
		}
		out.Fields[trimmed] = ft.String()
	}

	return out, nil
}

// FieldNames returns the schema's field names in sorted order, so
// prompts and cache keys are deterministic.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Type returns the parsed type of a field. The schema must have been
// normalized; unparseable tokens fall back to string.
func (s Schema) Type(field string) FieldType {
	ft, err := ParseType(s.Fields[field])
	if err != nil {
		return FieldType{Kind: KindString}
	}
	return ft
}
