package tandem

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/pricing/models.yaml
var modelPricingYAML []byte

// Pricing Philosophy:
//
// This registry provides MODEL METADATA for cost estimates, metrics, and
// informational purposes. It does NOT gate requests - provider APIs are the
// source of truth for what a model accepts.
//
// Prices drift as providers update their catalogs. Operators can override
// the embedded data by:
//  1. Calling LoadPricingFromFile() with custom YAML
//  2. Calling RegisterModelPricing() programmatically

// PricingInfo contains per-million-token prices in USD.
type PricingInfo struct {
	InputPer1M  float64 `yaml:"input_per_1m"`
	OutputPer1M float64 `yaml:"output_per_1m"`

	// ReasoningPer1M prices reasoning tokens when the provider bills them
	// at a separate rate; zero means they bill at the output rate.
	ReasoningPer1M float64 `yaml:"reasoning_per_1m"`
}

// ModelPricing represents the metadata for a specific model.
type ModelPricing struct {
	ContextWindow   int         `yaml:"context_window"`
	MaxOutputTokens int         `yaml:"max_output_tokens"`
	Pricing         PricingInfo `yaml:"pricing"`
}

// providerPricing is one provider's model catalog in the YAML file.
type providerPricing struct {
	Models map[string]ModelPricing `yaml:"models"`
}

// pricingFile is the embedded YAML document layout.
type pricingFile struct {
	Version     string                     `yaml:"version"`      // Semantic version (e.g., "1.0.0")
	LastUpdated string                     `yaml:"last_updated"` // ISO 8601 date (e.g., "2025-08-20")
	Providers   map[string]providerPricing `yaml:"providers"`
}

// PricingRegistry manages model pricing metadata.
type PricingRegistry struct {
	models map[ProviderID]map[string]ModelPricing
	mu     sync.RWMutex
}

var (
	globalPricing     *PricingRegistry
	globalPricingOnce sync.Once
)

// GetPricingRegistry returns the global pricing registry (singleton).
func GetPricingRegistry() *PricingRegistry {
	globalPricingOnce.Do(func() {
		globalPricing = &PricingRegistry{
			models: make(map[ProviderID]map[string]ModelPricing),
		}
		if err := globalPricing.loadEmbedded(); err != nil {
			// Don't panic - cost estimation degrades to "unknown"
			fmt.Printf("Warning: failed to load embedded model pricing: %v\n", err)
		}
	})
	return globalPricing
}

// loadEmbedded loads the embedded pricing YAML.
func (r *PricingRegistry) loadEmbedded() error {
	var file pricingFile
	if err := yaml.Unmarshal(modelPricingYAML, &file); err != nil {
		return fmt.Errorf("failed to unmarshal model pricing: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for provider, catalog := range file.Providers {
		r.models[ProviderID(provider)] = catalog.Models
	}
	return nil
}

// ModelPricing returns the metadata for a specific model.
func (r *PricingRegistry) ModelPricing(provider ProviderID, model string) (*ModelPricing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	catalog, ok := r.models[provider]
	if !ok {
		return nil, fmt.Errorf("no pricing data for provider: %s", provider)
	}
	mp, ok := catalog[model]
	if !ok {
		return nil, fmt.Errorf("model %s not found for provider %s", model, provider)
	}
	return &mp, nil
}

// EstimateCost returns the estimated USD cost of a usage summary. The second
// return is false when the model has no pricing data; callers treat that as
// "unknown", never as zero cost.
func (r *PricingRegistry) EstimateCost(provider ProviderID, model string, u Usage) (float64, bool) {
	mp, err := r.ModelPricing(provider, model)
	if err != nil {
		return 0, false
	}

	u = u.Normalized()
	reasoningRate := mp.Pricing.ReasoningPer1M
	if reasoningRate == 0 {
		reasoningRate = mp.Pricing.OutputPer1M
	}

	// Reasoning tokens are a subset of completion tokens; bill the two
	// slices at their own rates.
	answerTokens := u.CompletionTokens - u.ReasoningTokens
	if answerTokens < 0 {
		answerTokens = 0
	}

	cost := float64(u.PromptTokens)*mp.Pricing.InputPer1M/1e6 +
		float64(answerTokens)*mp.Pricing.OutputPer1M/1e6 +
		float64(u.ReasoningTokens)*reasoningRate/1e6
	return cost, true
}

// LoadPricingFromFile loads model pricing from a YAML file, replacing the
// catalogs of the providers it names. The file format matches the embedded
// YAML structure.
func (r *PricingRegistry) LoadPricingFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pricing file: %w", err)
	}

	var file pricingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal pricing file: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for provider, catalog := range file.Providers {
		r.models[ProviderID(provider)] = catalog.Models
	}
	return nil
}

// RegisterModelPricing programmatically registers pricing for one model.
func (r *PricingRegistry) RegisterModelPricing(provider ProviderID, model string, mp ModelPricing) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.models[provider] == nil {
		r.models[provider] = make(map[string]ModelPricing)
	}
	r.models[provider][model] = mp
}

// EstimateCost is a convenience function that calls the global registry's EstimateCost.
func EstimateCost(provider ProviderID, model string, u Usage) (float64, bool) {
	return GetPricingRegistry().EstimateCost(provider, model, u)
}

// LoadPricingFromFile is a convenience function that calls the global registry's LoadPricingFromFile.
func LoadPricingFromFile(path string) error {
	return GetPricingRegistry().LoadPricingFromFile(path)
}
