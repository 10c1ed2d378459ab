package tandem

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRequestError_SentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		kind     ErrorKind
		sentinel error
	}{
		{name: "missing credential", kind: KindMissingCredential, sentinel: ErrMissingCredential},
		{name: "unsupported model", kind: KindUnsupportedModel, sentinel: ErrUnsupportedModel},
		{name: "invalid request", kind: KindInvalidRequest, sentinel: ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRequestError(tt.kind, ProviderDeepSeek, "boom")
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", err)
			}

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatal("errors.As(*RequestError) = false")
			}
			if reqErr.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", reqErr.Kind, tt.kind)
			}
		})
	}
}

func TestProviderError_SentinelMatching(t *testing.T) {
	err := Fatalf(ProviderAnthropic, KindUpstreamTimeout, "deadline after %ds", 120)

	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Error("errors.Is(ErrUpstreamTimeout) = false")
	}
	if !err.Fatal {
		t.Error("Fatalf must build a fatal error")
	}
	if !strings.Contains(err.Error(), "anthropic") {
		t.Errorf("Error() = %q, missing provider name", err.Error())
	}

	// Wrapping through fmt keeps the chain intact.
	wrapped := fmt.Errorf("phase failed: %w", err)
	if !errors.Is(wrapped, ErrUpstreamTimeout) {
		t.Error("sentinel lost through wrapping")
	}
}

func TestMalformedFrame_IsRecoverable(t *testing.T) {
	err := MalformedFrame(ProviderDeepSeek, `{"bad json`)

	if err.Fatal {
		t.Error("malformed frame errors must not be fatal")
	}
	if IsFatal(err) {
		t.Error("IsFatal() = true for a malformed frame")
	}
	if !errors.Is(err, ErrMalformedFrame) {
		t.Error("errors.Is(ErrMalformedFrame) = false")
	}
	if err.Raw != `{"bad json` {
		t.Errorf("Raw = %q, raw payload must be preserved", err.Raw)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "request error",
			err:  NewRequestError(KindMissingCredential, ProviderQwen, "x"),
			want: KindMissingCredential,
		},
		{
			name: "provider error",
			err:  Fatalf(ProviderDeepSeek, KindUpstreamUnreachable, "x"),
			want: KindUpstreamUnreachable,
		},
		{
			name: "wrapped provider error",
			err:  fmt.Errorf("outer: %w", Fatalf(ProviderDeepSeek, KindUpstreamTimeout, "x")),
			want: KindUpstreamTimeout,
		},
		{
			name: "bare sentinel",
			err:  ErrUnsupportedModel,
			want: KindUnsupportedModel,
		},
		{
			name: "unknown error",
			err:  errors.New("mystery"),
			want: KindUpstreamFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRequestLevel(t *testing.T) {
	if !IsRequestLevel(NewRequestError(KindInvalidRequest, "", "x")) {
		t.Error("IsRequestLevel() = false for a RequestError")
	}
	if IsRequestLevel(Fatalf(ProviderDeepSeek, KindUpstreamFatal, "x")) {
		t.Error("IsRequestLevel() = true for an upstream failure")
	}
	if IsRequestLevel(nil) {
		t.Error("IsRequestLevel(nil) = true")
	}
}

func TestProviderError_ErrorFormat(t *testing.T) {
	withStatus := &ProviderError{
		Provider:   ProviderDeepSeek,
		Kind:       KindUpstreamFatal,
		StatusCode: 503,
		Message:    "overloaded",
	}
	if got := withStatus.Error(); !strings.Contains(got, "503") {
		t.Errorf("Error() = %q, want status code included", got)
	}

	withoutStatus := &ProviderError{
		Provider: ProviderDeepSeek,
		Kind:     KindMalformedFrame,
		Message:  "bad frame",
	}
	if got := withoutStatus.Error(); strings.Contains(got, "status") {
		t.Errorf("Error() = %q, no status section expected", got)
	}
}
