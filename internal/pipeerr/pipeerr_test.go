package pipeerr

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRetriable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{ExtractionQuotaExceeded, true},
		{ExtractionTimeout, true},
		{ExtractionServiceUnavailable, true},
		{ExtractionTransportError, true},
		{ExtractionAuthFailure, false},
		{ExtractionInvalidArgument, false},
		{MissingCredential, false},
		{InsufficientInput, false},
		{MalformedResponse, false},
		{CorruptInput, false},
	}
	for _, tt := range tests {
		if got := Retriable(tt.kind); got != tt.want {
			t.Errorf("Retriable(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestAsPassesThroughTypedErrors(t *testing.T) {
	orig := New(StageOCR, AllPagesFailed, "all pages failed", nil)
	wrapped := fmt.Errorf("run aborted: %w", orig)

	got := As(wrapped, StageExtract, ExtractionTransportError)
	if got.Stage != StageOCR || got.Kind != AllPagesFailed {
		t.Fatalf("As() = %s/%s, want ocr/ALL_PAGES_FAILED", got.Stage, got.Kind)
	}
}

func TestAsWrapsPlainErrors(t *testing.T) {
	plain := errors.New("boom")
	got := As(plain, StageRasterize, CorruptInput)
	if got.Stage != StageRasterize || got.Kind != CorruptInput {
		t.Fatalf("As() = %s/%s, want rasterize/CORRUPT_INPUT", got.Stage, got.Kind)
	}
	if !errors.Is(got, plain) {
		t.Error("wrapped error should unwrap to the original")
	}
}

func TestAsNil(t *testing.T) {
	if got := As(nil, StageOCR, AllPagesFailed); got != nil {
		t.Fatalf("As(nil) = %v, want nil", got)
	}
}

func TestCodeRoundTrip(t *testing.T) {
	// Extraction kinds must survive a trip through the code space, since
	// gRPC-shaped backends report errors that way.
	kinds := []Kind{
		ExtractionAuthFailure,
		ExtractionQuotaExceeded,
		ExtractionTimeout,
		ExtractionInvalidArgument,
		ExtractionServiceUnavailable,
	}
	for _, k := range kinds {
		e := New(StageExtract, k, "x", nil)
		if got := KindFromCode(e.Code()); got != k {
			t.Errorf("KindFromCode(Code(%s)) = %s", k, got)
		}
	}
}

func TestKindFromCodeNotFound(t *testing.T) {
	// An unknown model identifier surfaces as NotFound and cannot succeed
	// on retry.
	if got := KindFromCode(codes.NotFound); got != ExtractionInvalidArgument {
		t.Fatalf("KindFromCode(NotFound) = %s, want %s", got, ExtractionInvalidArgument)
	}
}

func TestFromServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "quota"), ExtractionQuotaExceeded},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "bad key"), ExtractionAuthFailure},
		{"plain error", errors.New("connection reset"), ExtractionTransportError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromServiceError(tt.err)
			if got.Kind != tt.want {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.want)
			}
			if got.Stage != StageExtract {
				t.Fatalf("stage = %s, want %s", got.Stage, StageExtract)
			}
		})
	}
	if got := FromServiceError(nil); got != nil {
		t.Fatalf("FromServiceError(nil) = %v, want nil", got)
	}
}

func TestErrorString(t *testing.T) {
	e := New(StageValidate, MalformedResponse, "not json", errors.New("unexpected token"))
	want := "validate/MALFORMED_RESPONSE: not json: unexpected token"
	if e.Error() != want {
		t.Fatalf("Error() = %q, want %q", e.Error(), want)
	}
}
