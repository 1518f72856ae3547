// Package schema provides the caller-facing field schema for extraction.
//
// A schema maps output field names to type tokens. Tokens are drawn
// from a fixed set (string, text, number, integer, boolean, array,
// object, date, url, email) plus the nested form "array<T>".
package schema

import (
	"fmt"
	"strings"
)

// Kind is a normalized type token.
type Kind string

const (
	KindString  Kind = "string"
	KindText    Kind = "text"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindDate    Kind = "date"
	KindURL     Kind = "url"
	KindEmail   Kind = "email"
)

// AllowedKinds lists every supported type token, in the order used in
// error messages.
var AllowedKinds = []Kind{
	KindString, KindText, KindNumber, KindInteger, KindBoolean,
	KindArray, KindObject, KindDate, KindURL, KindEmail,
}

var kindSet = func() map[Kind]bool {
	m := make(map[Kind]bool, len(AllowedKinds))
	for _, k := range AllowedKinds {
		m[k] = true
	}
	return m
}()

// FieldType is a parsed type token. Elem is set only for arrays.
type FieldType struct {
	Kind Kind
	Elem *FieldType
}

// String renders the type back to token form ("array<string>" etc).
func (t FieldType) String() string {
	if t.Kind == KindArray && t.Elem != nil {
		return fmt.Sprintf("array<%s>", t.Elem.String())
	}
	return string(t.Kind)
}

// ParseType parses a raw type token into a FieldType. The token is
// trimmed and lower-cased first, so " Array<String> " is accepted.
func ParseType(token string) (FieldType, error) {
	norm := NormalizeToken(token)
	if norm == "" {
		return FieldType{}, fmt.Errorf("empty type token")
	}

	if strings.HasPrefix(norm, "array<") && strings.HasSuffix(norm, ">") {
		inner := norm[len("array<") : len(norm)-1]
		elem, err := ParseType(inner)
		if err != nil {
			return FieldType{}, fmt.Errorf("array item type: %w", err)
		}
		return FieldType{Kind: KindArray, Elem: &elem}, nil
	}

	k := Kind(norm)
	if !kindSet[k] {
		return FieldType{}, fmt.Errorf("unsupported type %q (allowed: %s)", token, allowedList())
	}
	return FieldType{Kind: k}, nil
}

// NormalizeToken lower-cases and trims a raw type token, including
// whitespace inside the array<...> form.
func NormalizeToken(token string) string {
	norm := strings.ToLower(strings.TrimSpace(token))
	if strings.Contains(norm, "<") {
		// "array < string >" -> "array<string>"
		norm = strings.ReplaceAll(norm, " ", "")
	}
	return norm
}

func allowedList() string {
	parts := make([]string, 0, len(AllowedKinds)+1)
	for _, k := range AllowedKinds {
		parts = append(parts, string(k))
	}
	parts = append(parts, "array<T>")
	return strings.Join(parts, ", ")
}

// ValidationError reports a malformed schema or field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "schema: " + e.Message
	}
	return fmt.Sprintf("schema field %q: %s", e.Field, e.Message)
}
