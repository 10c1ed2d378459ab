package tandem

import "strings"

// Credentials maps provider IDs to API keys for one request. The bag is
// populated by the ingress layer (request headers, config fallback) and read
// by adapters. It is never persisted and must never be logged.
type Credentials map[ProviderID]string

// Key returns the API key for the provider, or a missing_credential
// RequestError when no non-empty key is present.
func (c Credentials) Key(id ProviderID) (string, error) {
	key := strings.TrimSpace(c[id])
	if key == "" {
		return "", NewRequestError(KindMissingCredential, id, "no API key supplied")
	}
	return key, nil
}

// Has reports whether a non-empty key is present for the provider.
func (c Credentials) Has(id ProviderID) bool {
	return strings.TrimSpace(c[id]) != ""
}
