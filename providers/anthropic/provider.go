package anthropic

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haowjy/tandem-llm-go"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 8192
	defaultTimeout   = 120 * time.Second
)

// Config holds the process-wide settings for the Anthropic provider.
// Initialized once at startup and never mutated per request.
type Config struct {
	// BaseURL overrides the Anthropic API endpoint (tests, proxies).
	// Empty means the SDK default.
	BaseURL string

	// Model is the default model when a request names none.
	Model string

	// MaxTokens is the default response cap.
	MaxTokens int

	// Timeout bounds one whole upstream call.
	Timeout time.Duration
}

// Provider implements the tandem.Adapter interface for Anthropic (Claude)
// models through the official SDK. The API key arrives per request, so the
// SDK client is built inside Invoke rather than held on the Provider.
type Provider struct {
	cfg        Config
	httpClient *http.Client
}

// NewProvider creates an Anthropic provider with defaults filled in.
func NewProvider(cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() tandem.ProviderID {
	return tandem.ProviderAnthropic
}

// SupportsModel returns true if this provider serves the given model.
// Anthropic models start with "claude-".
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

// RequiresCredential reports that Anthropic calls need an API key.
func (p *Provider) RequiresCredential() bool {
	return true
}

// Invoke starts one streaming Messages call and returns the normalized
// event channel. The upstream request is issued before Invoke returns, so
// authentication and connection failures surface as the returned error
// rather than as a one-event stream.
func (p *Provider) Invoke(ctx context.Context, req *tandem.Request, creds tandem.Credentials) (<-chan tandem.Event, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, tandem.NewRequestError(tandem.KindInvalidRequest, p.Name(), "messages must not be empty")
	}

	key, err := creds.Key(p.Name())
	if err != nil {
		return nil, err
	}

	params, err := p.buildMessageParams(req)
	if err != nil {
		return nil, err
	}

	client := anthropic.NewClient(p.clientOptions(key)...)
	stream := client.Messages.NewStreaming(ctx, params, requestOptions(req)...)
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, p.classifyStreamError(err)
	}

	events := make(chan tandem.Event, 10) // Buffered to prevent blocking
	go func() {
		defer close(events)
		defer stream.Close()
		p.stream(ctx, stream, events)
	}()

	return events, nil
}

// clientOptions assembles the SDK options for one call. One attempt only;
// the chain never retries a phase.
func (p *Provider) clientOptions(key string) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0),
	}
	if p.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.cfg.BaseURL))
	}
	return opts
}

// classifyStreamError maps SDK failures to the error taxonomy. API errors
// keep their HTTP status; deadline problems become timeouts, everything
// else unreachable.
func (p *Provider) classifyStreamError(err error) *tandem.ProviderError {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		perr := &tandem.ProviderError{
			Provider:   p.Name(),
			Kind:       tandem.KindUpstreamFatal,
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
			Fatal:      true,
			Err:        tandem.ErrUpstreamFatal,
		}
		switch {
		case apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden:
			perr.Message = "authentication rejected: " + apierr.Error()
		case apierr.StatusCode == http.StatusTooManyRequests:
			perr.Message = "rate limited: " + apierr.Error()
		case apierr.StatusCode == http.StatusRequestTimeout:
			perr.Kind = tandem.KindUpstreamTimeout
			perr.Err = tandem.ErrUpstreamTimeout
		case apierr.StatusCode >= 500:
			perr.Message = "upstream server error: " + apierr.Error()
		}
		return perr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return tandem.Fatalf(p.Name(), tandem.KindUpstreamTimeout, "request deadline exceeded: %v", err)
	}
	if errors.Is(err, context.Canceled) {
		return tandem.Fatalf(p.Name(), tandem.KindUpstreamTimeout, "stream interrupted: %v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return tandem.Fatalf(p.Name(), tandem.KindUpstreamTimeout, "request timed out: %v", err)
	}
	return tandem.Fatalf(p.Name(), tandem.KindUpstreamUnreachable, "request failed: %v", err)
}
