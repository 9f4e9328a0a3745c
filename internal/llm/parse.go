package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ocrfield/docextract/internal/pipeerr"
	"github.com/ocrfield/docextract/internal/schema"
)

// StripFence removes a single leading/trailing fenced-code wrapper
// (``` or ```json) around the response, if present. Content-preserving and
// idempotent: unfenced input passes through untouched.
func StripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	rest := t[3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// drop the info string ("json", "JSON", ...) on the opening line
		rest = rest[nl+1:]
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, "```")
	return strings.TrimSpace(rest)
}

// ParseFields normalizes and parses a raw model response, then classifies
// every schema key as present or missing. Unknown keys are ignored — the
// schema is authoritative, the model's output is untrusted. A structurally
// valid response matching zero fields is a successful parse.
func ParseFields(raw string, s schema.Schema) (schema.Fields, error) {
	norm := StripFence(raw)

	var m map[string]any
	if err := json.Unmarshal([]byte(norm), &m); err != nil {
		return schema.Fields{}, &pipeerr.Error{
			Stage:   pipeerr.StageValidate,
			Kind:    pipeerr.MalformedResponse,
			Message: "response is not a JSON object",
			Cause:   err,
			Raw:     raw,
		}
	}

	sanitized := sanitize(m)
	doc, err := json.Marshal(sanitized)
	if err != nil {
		return schema.Fields{}, fmt.Errorf("re-encode response: %w", err)
	}
	if err := ValidateJSONAgainstSchema(s.JSONSchema(), doc); err != nil {
		return schema.Fields{}, &pipeerr.Error{
			Stage:   pipeerr.StageValidate,
			Kind:    pipeerr.MalformedResponse,
			Message: "response does not match field schema",
			Cause:   err,
			Raw:     raw,
		}
	}

	out := schema.Fields{
		Present:       make(map[string]string),
		SchemaVersion: s.Version,
	}
	for _, key := range s.Keys() {
		v, ok := sanitized[key]
		if !ok || v == nil {
			out.Missing = append(out.Missing, key)
			continue
		}
		out.Present[key] = v.(string)
	}
	return out, nil
}

// sanitize coerces scalar values to strings and drops non-scalar ones so
// strict validation doesn't reject a response over a numeric CPF or a
// boolean flag. Nulls are kept: null means "not found".
func sanitize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			out[k] = nil
		case string:
			s := strings.TrimSpace(t)
			if strings.EqualFold(s, "null") {
				out[k] = nil
			} else {
				out[k] = s
			}
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			// arrays/objects have no place in a flat field set
			out[k] = nil
		}
	}
	return out
}
