package llm

import (
	"strings"

	"github.com/ocrfield/docextract/internal/schema"
)

// maxPromptText caps how much OCR text is quoted into the prompt.
const maxPromptText = 12000

// BuildPrompt composes the extraction prompt deterministically from the
// schema and the aggregated text. The schema is the single source of truth
// for the field list, so the prompt can never drift from what the
// validator checks.
func BuildPrompt(s schema.Schema, text string) string {
	var b strings.Builder
	b.WriteString("You are a document parser for identity documents. ")
	b.WriteString("Extract the fields listed below from the OCR text of a scanned document.\n\n")
	b.WriteString("Fields (key: description (expected format)):\n")
	b.WriteString(s.PromptFieldList())
	b.WriteString("\nRules:\n")
	b.WriteString("- Respond with exactly one JSON object and nothing else: no prose, no code fences.\n")
	b.WriteString("- Every key above must appear in the object.\n")
	b.WriteString("- Use null for any field that cannot be found in the text.\n")
	b.WriteString("- Copy values as printed; do not invent or reformat beyond the expected format.\n")
	b.WriteString("\nOCR text:\n")
	if len(text) > maxPromptText {
		b.WriteString(text[:maxPromptText])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}
