package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
)

func TestKindFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorKind
	}{
		{401, KindAuth},
		{403, KindAuth},
		{400, KindValidation},
		{404, KindValidation},
		{409, KindValidation},
		{422, KindValidation},
		{408, KindTransient},
		{429, KindTransient},
		{500, KindTransient},
		{503, KindTransient},
		{418, KindTransient}, // unknown codes default to retryable
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.code), func(t *testing.T) {
			if got := KindFromStatus(tt.code); got != tt.want {
				t.Errorf("KindFromStatus(%d) = %s, want %s", tt.code, got, tt.want)
			}
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := NewProviderError("Push", KindValidation, "missing end time").
		WithStatus(422).
		WithRecordID("ev-1")

	if !strings.Contains(err.Error(), "Push failed with status 422") {
		t.Errorf("Error() = %q, want operation and status", err.Error())
	}

	plain := NewProviderError("Pull", KindTransient, "connection reset")
	if plain.Error() != "Pull failed: connection reset" {
		t.Errorf("Error() = %q", plain.Error())
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewProviderError("Delete", KindTransient, "wrapped").WithError(inner)

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "provider error keeps its kind",
			err:  NewProviderError("Push", KindAuth, "bad token"),
			want: KindAuth,
		},
		{
			name: "wrapped provider error keeps its kind",
			err:  fmt.Errorf("push ev-1: %w", NewProviderError("Push", KindValidation, "rejected")),
			want: KindValidation,
		},
		{
			name: "deadline exceeded is transient",
			err:  context.DeadlineExceeded,
			want: KindTransient,
		},
		{
			name: "dns failure is transient",
			err:  &net.DNSError{Err: "no such host", Name: "calendar.example.com"},
			want: KindTransient,
		},
		{
			name: "unknown error defaults to transient",
			err:  errors.New("something odd"),
			want: KindTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestErrPredicates(t *testing.T) {
	auth := NewProviderError("Pull", KindAuth, "expired token").WithStatus(401)
	validation := NewProviderError("Push", KindValidation, "not found").WithStatus(404)

	if !IsAuthErr(fmt.Errorf("cycle: %w", auth)) {
		t.Error("IsAuthErr should see through wrapping")
	}
	if IsAuthErr(validation) {
		t.Error("IsAuthErr should be false for validation errors")
	}
	if !IsValidationErr(validation) {
		t.Error("IsValidationErr should be true for 404 rejection")
	}
	if !IsNotFoundErr(validation) {
		t.Error("IsNotFoundErr should be true for status 404")
	}
	if IsNotFoundErr(auth) {
		t.Error("IsNotFoundErr should be false for status 401")
	}
}
