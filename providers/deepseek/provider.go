package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/haowjy/tandem-llm-go"
)

const (
	defaultBaseURL   = "https://api.deepseek.com/v1"
	defaultModel     = "deepseek-reasoner"
	defaultMaxTokens = 4096
	defaultTimeout   = 120 * time.Second
)

// Config holds the process-wide settings for the DeepSeek provider.
// Initialized once at startup and never mutated per request.
type Config struct {
	// BaseURL overrides the DeepSeek API endpoint (tests, proxies).
	BaseURL string

	// Model is the default model when a request names none.
	Model string

	// MaxTokens is the default response cap.
	MaxTokens int

	// Timeout bounds one whole upstream call.
	Timeout time.Duration

	// ReasoningOnly stops reading at the first answer token. The chain
	// needs only the trace from this provider, so the rest of the answer
	// would be paid for and discarded. Usage reported after the cutoff is
	// lost; the summary then stays zero.
	ReasoningOnly bool
}

// Provider implements the tandem.Adapter interface for DeepSeek's
// OpenAI-compatible API. The deepseek-reasoner model interleaves
// reasoning_content and content deltas in one stream.
type Provider struct {
	cfg        Config
	httpClient *http.Client
}

// NewProvider creates a DeepSeek provider with defaults filled in.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
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
	return tandem.ProviderDeepSeek
}

// SupportsModel returns true if this provider serves the given model.
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "deepseek")
}

// RequiresCredential reports that DeepSeek calls need an API key.
func (p *Provider) RequiresCredential() bool {
	return true
}

// Invoke starts one streaming chat completion call and returns the
// normalized event channel. Validation and credential lookup happen before
// any network I/O.
func (p *Provider) Invoke(ctx context.Context, req *tandem.Request, creds tandem.Credentials) (<-chan tandem.Event, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, tandem.NewRequestError(tandem.KindInvalidRequest, p.Name(), "messages must not be empty")
	}

	key, err := creds.Key(p.Name())
	if err != nil {
		return nil, err
	}

	body, err := p.buildRequestBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	req.Overrides.ApplyHeaders(httpReq.Header)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, p.classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.handleErrorResponse(resp)
	}

	events := make(chan tandem.Event, 10) // Buffered to prevent blocking
	go func() {
		defer close(events)
		defer resp.Body.Close()

		if err := p.streamEvents(ctx, resp.Body, events); err != nil {
			events <- tandem.ErrorEvent(p.asProviderError(err))
			return
		}
		events <- tandem.Done()
	}()

	return events, nil
}

// classifyTransportError maps client-side transport failures to the error
// taxonomy: deadline problems become timeouts, everything else unreachable.
func (p *Provider) classifyTransportError(err error) *tandem.ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return tandem.Fatalf(p.Name(), tandem.KindUpstreamTimeout, "request deadline exceeded: %v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return tandem.Fatalf(p.Name(), tandem.KindUpstreamTimeout, "request timed out: %v", err)
	}
	return tandem.Fatalf(p.Name(), tandem.KindUpstreamUnreachable, "request failed: %v", err)
}

// asProviderError passes through taxonomy errors and classifies the rest.
func (p *Provider) asProviderError(err error) *tandem.ProviderError {
	var provErr *tandem.ProviderError
	if errors.As(err, &provErr) {
		return provErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return tandem.Fatalf(p.Name(), tandem.KindUpstreamTimeout, "stream interrupted: %v", err)
	}
	return tandem.Fatalf(p.Name(), tandem.KindUpstreamFatal, "stream failed: %v", err)
}

// handleErrorResponse parses non-200 responses from DeepSeek.
func (p *Provider) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	// Try to parse the structured error envelope
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}

	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	perr := &tandem.ProviderError{
		Provider:   p.Name(),
		Kind:       tandem.KindUpstreamFatal,
		StatusCode: resp.StatusCode,
		Message:    message,
		Fatal:      true,
		Err:        tandem.ErrUpstreamFatal,
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		perr.Message = "authentication rejected: " + message
	case resp.StatusCode == http.StatusTooManyRequests:
		perr.Message = "rate limited: " + message
	case resp.StatusCode == http.StatusRequestTimeout:
		perr.Kind = tandem.KindUpstreamTimeout
		perr.Err = tandem.ErrUpstreamTimeout
	case resp.StatusCode >= 500:
		perr.Message = "upstream server error: " + message
	}
	return perr
}
