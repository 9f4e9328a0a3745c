package ocr

import (
	"regexp"
	"strings"
)

var (
	reDocDate  = regexp.MustCompile(`\b\d{2}/\d{2}/(19|20)\d{2}\b`)
	reCPF      = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)
	reRegistry = regexp.MustCompile(`\b\d{1,2}\.?\d{3}\.?\d{3}-?[0-9xX]?\b`)
	reIssuer   = regexp.MustCompile(`\b(ssp|detran|ifp|igp|pc|sds|sejusp)\b`)
)

// HeuristicConfidence scores recognized text by how many identity-document
// artifacts it contains (dates, registry numbers, CPF, issuing authority).
// Rough signal for the caller to decide whether a result needs review.
func HeuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if reDocDate.MatchString(txtL) {
		score += 0.2
	}
	if reCPF.MatchString(txtL) {
		score += 0.2
	}
	if reRegistry.MatchString(txtL) {
		score += 0.1
	}
	if reIssuer.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
