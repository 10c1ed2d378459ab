package tandem

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/tidwall/sjson"
)

// Overrides carries caller-supplied provider-specific request customization.
// The pipeline passes them through untouched; each adapter applies them to
// its own wire request after building it, so a request-level override wins
// over the server-side default for the same field.
type Overrides struct {
	// Headers are added to the outbound HTTP request. They cannot replace
	// the credential header the adapter sets itself.
	Headers map[string]string `json:"headers,omitempty"`

	// Body fields are merged into the serialized wire request. Keys use
	// sjson path syntax, so "generation_config.top_p" addresses a nested
	// field.
	Body map[string]any `json:"body,omitempty"`
}

// Apply merges the override body fields into an already-serialized wire
// request. Protected keys are skipped so callers cannot corrupt fields the
// adapter owns (streaming flags, the message list). Keys are applied in
// sorted order to keep the result deterministic.
func (o *Overrides) Apply(body []byte, protected ...string) ([]byte, error) {
	if o == nil || len(o.Body) == 0 {
		return body, nil
	}

	blocked := make(map[string]bool, len(protected))
	for _, key := range protected {
		blocked[key] = true
	}

	keys := make([]string, 0, len(o.Body))
	for key := range o.Body {
		if blocked[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var err error
	for _, key := range keys {
		body, err = sjson.SetBytes(body, key, o.Body[key])
		if err != nil {
			return nil, fmt.Errorf("applying body override %q: %w", key, err)
		}
	}
	return body, nil
}

// ApplyHeaders adds the override headers to an outbound request header set.
// The Authorization header is protected: credentials travel only through the
// Credentials bag.
func (o *Overrides) ApplyHeaders(h http.Header) {
	if o == nil {
		return
	}
	for key, value := range o.Headers {
		if http.CanonicalHeaderKey(key) == "Authorization" {
			continue
		}
		h.Set(key, value)
	}
}

// BodyKeys returns the override body keys in sorted order, minus the given
// protected keys. Adapters that cannot merge into raw bytes (SDK-backed
// providers) iterate these and set each field through the SDK.
func (o *Overrides) BodyKeys(protected ...string) []string {
	if o == nil || len(o.Body) == 0 {
		return nil
	}

	blocked := make(map[string]bool, len(protected))
	for _, key := range protected {
		blocked[key] = true
	}

	keys := make([]string, 0, len(o.Body))
	for key := range o.Body {
		if blocked[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
