package gateway

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProviderConfig holds one provider's gateway-level settings. Zero values
// defer to the provider package defaults.
type ProviderConfig struct {
	// BaseURL overrides the provider endpoint (tests, proxies).
	BaseURL string `mapstructure:"base_url"`

	// Model is the default model for this provider.
	Model string `mapstructure:"model"`

	// MaxTokens is the default response cap.
	MaxTokens int `mapstructure:"max_tokens"`

	// Timeout bounds one whole upstream call.
	Timeout time.Duration `mapstructure:"timeout"`

	// APIKey is the server-side fallback key, used when a request carries
	// no credential header for this provider.
	APIKey string `mapstructure:"api_key"`
}

// Config holds the gateway settings.
type Config struct {
	// Address is the listen address.
	Address string `mapstructure:"address"`

	// TelemetryURL is the OTLP/HTTP trace collector endpoint. Empty
	// disables tracing.
	TelemetryURL string `mapstructure:"telemetry_url"`

	// LoremMode swaps both pipeline phases for the mock provider, so the
	// full gateway runs without any API keys.
	LoremMode bool `mapstructure:"lorem_mode"`

	DeepSeek  ProviderConfig `mapstructure:"deepseek"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	Qwen      ProviderConfig `mapstructure:"qwen"`
}

// Load reads config.yaml from the working directory or ./config, then
// applies TANDEM_-prefixed environment variables on top.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// allow environment variables like TANDEM_ADDRESS or
	// TANDEM_DEEPSEEK_API_KEY
	v.SetEnvPrefix("TANDEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// don't fail if config file is missing, allow env-only config
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// setDefaults registers every key viper should know. AutomaticEnv resolves
// only registered keys during Unmarshal, so an env-only deployment needs
// the full key set here.
func setDefaults(v *viper.Viper) {
	v.SetDefault("address", ":8000")
	v.SetDefault("telemetry_url", "")
	v.SetDefault("lorem_mode", false)

	// Models are named here rather than left to the provider defaults so
	// the gateway can label cost metrics when a request names no model.
	v.SetDefault("deepseek.model", "deepseek-reasoner")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("qwen.model", "qwen-plus")

	for _, provider := range []string{"deepseek", "anthropic", "qwen"} {
		v.SetDefault(provider+".base_url", "")
		v.SetDefault(provider+".max_tokens", 0)
		v.SetDefault(provider+".timeout", "0s")
		v.SetDefault(provider+".api_key", "")
	}
}
