package constants

import "strings"

// Format is the declared input kind for a pipeline run.
type Format string

const (
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
)

// MIME types accepted at the input boundary. Anything else is rejected
// before any engine is invoked.
const (
	MIMEPNG = "image/png"
	MIMEJPG = "image/jpeg"
	MIMEPDF = "application/pdf"
)

// AllowedExtensions holds the default allowed file extensions for ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to a Format. Returns "" when the
// extension is not supported.
func MapExtToFormat(ext string) Format {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "png", "jpg", "jpeg":
		return IMAGE
	}
	return ""
}

// MapExtToMIME maps a file extension to its canonical MIME type. Returns ""
// when the extension is not supported.
func MapExtToMIME(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return MIMEPDF
	case "png":
		return MIMEPNG
	case "jpg", "jpeg":
		return MIMEJPG
	}
	return ""
}

// MapMIMEToFormat maps a declared MIME type to a Format. Returns "" when the
// type is not supported.
func MapMIMEToFormat(mimeType string) Format {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case MIMEPDF:
		return PDF
	case MIMEPNG, MIMEJPG, "image/jpg":
		return IMAGE
	}
	return ""
}
