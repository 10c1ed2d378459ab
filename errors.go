package tandem

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for clients and metrics.
// Kinds are stable wire-level strings.
type ErrorKind string

const (
	// KindMissingCredential means no API key was supplied for a provider
	// the request would invoke. Raised before any network call.
	KindMissingCredential ErrorKind = "missing_credential"

	// KindUnsupportedModel means no configured generation provider accepts
	// the requested model. Raised before any network call.
	KindUnsupportedModel ErrorKind = "unsupported_model"

	// KindInvalidRequest means the request body failed validation.
	KindInvalidRequest ErrorKind = "invalid_request"

	// KindUpstreamTimeout means a provider call exceeded its deadline.
	KindUpstreamTimeout ErrorKind = "upstream_timeout"

	// KindUpstreamUnreachable means the provider could not be reached at
	// the transport level (DNS, connect, TLS).
	KindUpstreamUnreachable ErrorKind = "upstream_unreachable"

	// KindMalformedFrame means one upstream stream frame could not be
	// decoded by any candidate schema. Recoverable: the stream continues.
	KindMalformedFrame ErrorKind = "upstream_malformed_frame"

	// KindUpstreamFatal means the provider reported a failure that ends
	// the phase (auth, quota, server error).
	KindUpstreamFatal ErrorKind = "upstream_fatal"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrMissingCredential indicates a required provider API key is absent.
	ErrMissingCredential = errors.New("tandem: missing provider credential")

	// ErrUnsupportedModel indicates no provider supports the requested model.
	ErrUnsupportedModel = errors.New("tandem: unsupported model")

	// ErrInvalidRequest indicates the request parameters are invalid.
	ErrInvalidRequest = errors.New("tandem: invalid request")

	// ErrUpstreamTimeout indicates a provider call exceeded its deadline.
	ErrUpstreamTimeout = errors.New("tandem: upstream deadline exceeded")

	// ErrUpstreamUnreachable indicates the provider service could not be reached.
	ErrUpstreamUnreachable = errors.New("tandem: upstream unreachable")

	// ErrMalformedFrame indicates an undecodable upstream stream frame.
	ErrMalformedFrame = errors.New("tandem: malformed upstream frame")

	// ErrUpstreamFatal indicates the provider reported a fatal failure.
	ErrUpstreamFatal = errors.New("tandem: upstream request failed")
)

// sentinel returns the sentinel error matching the kind, so constructed
// errors always satisfy errors.Is for their classification.
func (k ErrorKind) sentinel() error {
	switch k {
	case KindMissingCredential:
		return ErrMissingCredential
	case KindUnsupportedModel:
		return ErrUnsupportedModel
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindUpstreamTimeout:
		return ErrUpstreamTimeout
	case KindUpstreamUnreachable:
		return ErrUpstreamUnreachable
	case KindMalformedFrame:
		return ErrMalformedFrame
	default:
		return ErrUpstreamFatal
	}
}

// RequestError represents a request-level rejection raised before any
// upstream call: missing credential, unsupported model, invalid body.
type RequestError struct {
	Kind     ErrorKind  // Classification
	Provider ProviderID // The provider involved, if any
	Message  string     // Human-readable explanation
	Err      error      // Wrapped sentinel (set from Kind when nil)
}

func (e *RequestError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: provider '%s': %s", e.Kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RequestError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind.sentinel()
}

// NewRequestError builds a RequestError carrying the sentinel for kind.
func NewRequestError(kind ErrorKind, provider ProviderID, message string) *RequestError {
	return &RequestError{Kind: kind, Provider: provider, Message: message, Err: kind.sentinel()}
}

// ProviderError represents a failure reported by or observed on an upstream
// provider. Fatal errors abort the current phase; non-fatal errors describe
// one undecodable frame and leave the stream running.
type ProviderError struct {
	Provider   ProviderID // The provider name
	Kind       ErrorKind  // Classification
	StatusCode int        // HTTP status code (if applicable)
	Message    string     // Error message from the provider
	Fatal      bool       // Whether this error ends the phase
	Raw        string     // Offending payload for malformed frames
	Err        error      // Wrapped sentinel (set from Kind when nil)
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider '%s' %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider '%s' %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind.sentinel()
}

// Fatalf builds a fatal ProviderError with a formatted message.
func Fatalf(provider ProviderID, kind ErrorKind, format string, args ...any) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Fatal:    true,
		Err:      kind.sentinel(),
	}
}

// MalformedFrame builds the non-fatal error for one undecodable frame,
// preserving the raw payload for diagnostics.
func MalformedFrame(provider ProviderID, raw string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     KindMalformedFrame,
		Message:  "frame did not match any known schema",
		Raw:      raw,
		Err:      ErrMalformedFrame,
	}
}

// KindOf extracts the ErrorKind from any error produced by this module.
// Unknown errors are classified as upstream_fatal.
func KindOf(err error) ErrorKind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	switch {
	case errors.Is(err, ErrMissingCredential):
		return KindMissingCredential
	case errors.Is(err, ErrUnsupportedModel):
		return KindUnsupportedModel
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrUpstreamTimeout):
		return KindUpstreamTimeout
	case errors.Is(err, ErrUpstreamUnreachable):
		return KindUpstreamUnreachable
	case errors.Is(err, ErrMalformedFrame):
		return KindMalformedFrame
	default:
		return KindUpstreamFatal
	}
}

// IsFatal checks whether an error ends its phase. Request-level errors and
// fatal provider errors qualify; a malformed-frame error does not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Fatal
	}

	return true
}

// IsRequestLevel checks whether an error was raised before any upstream
// call and therefore maps to a 4xx response.
func IsRequestLevel(err error) bool {
	if err == nil {
		return false
	}

	var reqErr *RequestError
	return errors.As(err, &reqErr)
}
