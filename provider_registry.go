package tandem

// ProviderID represents a unique provider identifier.
// Using a typed constant prevents typos and provides compile-time safety.
type ProviderID string

// Known provider identifiers
const (
	// ProviderDeepSeek is DeepSeek's reasoning API
	ProviderDeepSeek ProviderID = "deepseek"

	// ProviderAnthropic is Anthropic's Claude API
	ProviderAnthropic ProviderID = "anthropic"

	// ProviderQwen is Alibaba's DashScope compatible-mode API
	ProviderQwen ProviderID = "qwen"

	// ProviderLorem is the mock Lorem provider for testing
	ProviderLorem ProviderID = "lorem"
)

// String returns the string representation of the provider ID
func (p ProviderID) String() string {
	return string(p)
}

// IsValid returns true if the provider ID is a known provider
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderDeepSeek, ProviderAnthropic, ProviderQwen, ProviderLorem:
		return true
	default:
		return false
	}
}

// KnownProviders lists every provider ID the module ships an adapter for.
func KnownProviders() []ProviderID {
	return []ProviderID{ProviderDeepSeek, ProviderAnthropic, ProviderQwen, ProviderLorem}
}
