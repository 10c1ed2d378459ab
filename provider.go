package tandem

import (
	"context"
)

// Adapter defines the interface every provider implementation must satisfy.
// An Adapter owns one upstream wire format and translates it into normalized
// Events; nothing above the Adapter ever sees provider-specific JSON.
//
// Types used by this interface:
//   - Request, Message: defined in request.go
//   - Event: defined in events.go
//   - Credentials: defined in credentials.go
type Adapter interface {
	// Invoke starts one upstream call and returns a channel of normalized
	// events. The channel is lazy, forward-only, and finite: it is closed
	// after Done or after a fatal error event. Request-level problems
	// (empty messages, missing credential) are returned as an error before
	// any network I/O.
	//
	// Usage:
	//   events, err := adapter.Invoke(ctx, req, creds)
	//   if err != nil { return err }
	//   for ev := range events {
	//     switch ev.Kind { ... }
	//   }
	Invoke(ctx context.Context, req *Request, creds Credentials) (<-chan Event, error)

	// Name returns the provider identifier (e.g. ProviderDeepSeek).
	Name() ProviderID

	// SupportsModel returns true if the provider serves the given model.
	SupportsModel(model string) bool

	// RequiresCredential reports whether Invoke needs an API key in the
	// credentials bag. Mock providers return false.
	RequiresCredential() bool
}
