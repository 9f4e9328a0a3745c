// Package pipeerr defines the stage-tagged error taxonomy shared by every
// pipeline stage. Callers switch on Kind rather than inspecting message
// strings.
package pipeerr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Stage names the pipeline stage an error originated from.
type Stage string

const (
	StageRasterize Stage = "rasterize"
	StageOCR       Stage = "ocr"
	StageExtract   Stage = "extract"
	StageValidate  Stage = "validate"
)

// Kind is the stable error category.
type Kind string

const (
	// Decode / rasterize.
	UnsupportedFormat          Kind = "UNSUPPORTED_FORMAT"
	CorruptInput               Kind = "CORRUPT_INPUT"
	RasterizationEngineMissing Kind = "RASTERIZATION_ENGINE_MISSING"
	RasterizationEmpty         Kind = "RASTERIZATION_EMPTY"

	// OCR.
	OCREngineMissing Kind = "OCR_ENGINE_MISSING"
	AllPagesFailed   Kind = "ALL_PAGES_FAILED"

	// Extraction.
	MissingCredential            Kind = "MISSING_CREDENTIAL"
	InsufficientInput            Kind = "INSUFFICIENT_INPUT"
	ExtractionAuthFailure        Kind = "EXTRACTION_AUTH_FAILURE"
	ExtractionQuotaExceeded      Kind = "EXTRACTION_QUOTA_EXCEEDED"
	ExtractionTimeout            Kind = "EXTRACTION_TIMEOUT"
	ExtractionInvalidArgument    Kind = "EXTRACTION_INVALID_ARGUMENT"
	ExtractionServiceUnavailable Kind = "EXTRACTION_SERVICE_UNAVAILABLE"
	ExtractionTransportError     Kind = "EXTRACTION_TRANSPORT_ERROR"

	// Validation.
	MalformedResponse Kind = "MALFORMED_RESPONSE"
)

// Error is a stage-tagged pipeline error. Raw retains the unparsed service
// response for MalformedResponse so diagnostics are never lost.
type Error struct {
	Stage   Stage
	Kind    Kind
	Message string
	Cause   error
	Raw     string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Stage, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Stage, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a stage-tagged error.
func New(stage Stage, kind Kind, message string, cause error) *Error {
	return &Error{Stage: stage, Kind: kind, Message: message, Cause: cause}
}

// As unwraps err into *Error, or wraps a plain error as the given fallback
// stage and kind so nothing leaves the pipeline untyped.
func As(err error, stage Stage, kind Kind) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return New(stage, kind, err.Error(), err)
}

// Retriable reports whether a retry can possibly succeed for this kind.
// Authentication and argument errors fail the same way every time.
func Retriable(k Kind) bool {
	switch k {
	case ExtractionQuotaExceeded, ExtractionTimeout,
		ExtractionServiceUnavailable, ExtractionTransportError:
		return true
	}
	return false
}

// Code maps a Kind to the canonical service category code.
func (e *Error) Code() codes.Code {
	switch e.Kind {
	case MissingCredential, ExtractionAuthFailure:
		return codes.Unauthenticated
	case UnsupportedFormat, CorruptInput, InsufficientInput, ExtractionInvalidArgument:
		return codes.InvalidArgument
	case RasterizationEngineMissing, OCREngineMissing:
		return codes.FailedPrecondition
	case RasterizationEmpty, AllPagesFailed:
		return codes.NotFound
	case ExtractionQuotaExceeded:
		return codes.ResourceExhausted
	case ExtractionTimeout:
		return codes.DeadlineExceeded
	case ExtractionServiceUnavailable, ExtractionTransportError:
		return codes.Unavailable
	case MalformedResponse:
		return codes.Internal
	}
	return codes.Unknown
}

// KindFromCode classifies a service category code into an extraction Kind.
// Used for gRPC-shaped service errors and for backends that map HTTP status
// onto the same code space.
func KindFromCode(c codes.Code) Kind {
	switch c {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ExtractionAuthFailure
	case codes.ResourceExhausted:
		return ExtractionQuotaExceeded
	case codes.DeadlineExceeded:
		return ExtractionTimeout
	case codes.InvalidArgument, codes.NotFound:
		// Unsupported model identifiers surface as NotFound; neither can
		// succeed on retry.
		return ExtractionInvalidArgument
	case codes.Unavailable, codes.Internal, codes.Aborted:
		return ExtractionServiceUnavailable
	}
	return ExtractionTransportError
}

// FromServiceError classifies an extraction-service error. gRPC status
// errors carry their own code; everything else is a transport fault.
func FromServiceError(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return New(StageExtract, KindFromCode(st.Code()), st.Message(), err)
	}
	return New(StageExtract, ExtractionTransportError, err.Error(), err)
}
