// Package schema declares the versioned set of identity-document fields the
// extraction stage must attempt to fill. The schema drives both the prompt
// and the response validation, so adding or removing a field happens in
// exactly one place.
package schema

import "strings"

// Field describes one target attribute.
type Field struct {
	Key   string // stable JSON key
	Label string // human description used in the prompt
	Hint  string // expected format, quoted verbatim in the prompt
}

// Schema is a fixed, versioned field set. Not user-mutable at runtime.
type Schema struct {
	Version string
	Fields  []Field
}

// Default returns the current identity-document schema.
func Default() Schema {
	return Schema{
		Version: "v1",
		Fields: []Field{
			{Key: "document_type", Label: "Document type", Hint: "one of RG, CNH, CPF, PASSPORT, OTHER"},
			{Key: "document_number", Label: "Document registry number", Hint: "digits, dots and dashes as printed"},
			{Key: "full_name", Label: "Holder's full name", Hint: "uppercase as printed"},
			{Key: "cpf", Label: "CPF number", Hint: "format 000.000.000-00"},
			{Key: "birth_date", Label: "Date of birth", Hint: "format DD/MM/YYYY"},
			{Key: "issue_date", Label: "Issue date", Hint: "format DD/MM/YYYY"},
			{Key: "expiry_date", Label: "Expiry date", Hint: "format DD/MM/YYYY"},
			{Key: "issuing_authority", Label: "Issuing authority", Hint: "e.g. SSP-SP, DETRAN-RJ"},
			{Key: "mother_name", Label: "Mother's name", Hint: "uppercase as printed"},
			{Key: "father_name", Label: "Father's name", Hint: "uppercase as printed"},
		},
	}
}

// Keys returns the schema keys in declaration order.
func (s Schema) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

// HasKey reports whether key belongs to the schema.
func (s Schema) HasKey(key string) bool {
	for _, f := range s.Fields {
		if f.Key == key {
			return true
		}
	}
	return false
}

// JSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Every field is string-or-null: the model is told to use null for values it
// cannot find, and the validator classifies nulls as missing. Unknown keys
// are tolerated here and ignored during classification — the model's output
// is untrusted.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Key] = map[string]any{"type": []any{"string", "null"}}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties":           props,
	}
}

// PromptFieldList renders the field list for the extraction prompt, one
// line per field: key, description, expected format.
func (s Schema) PromptFieldList() string {
	var b strings.Builder
	for _, f := range s.Fields {
		b.WriteString("- ")
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(f.Label)
		if f.Hint != "" {
			b.WriteString(" (")
			b.WriteString(f.Hint)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Fields is the validated extraction outcome. Present and Missing together
// span exactly the schema key set.
type Fields struct {
	Present       map[string]string `json:"present"`
	Missing       []string          `json:"missing"`
	SchemaVersion string            `json:"schema_version"`
}

// Empty reports whether nothing was extracted. A structurally valid
// response with zero matched fields is still a successful parse.
func (f Fields) Empty() bool { return len(f.Present) == 0 }
