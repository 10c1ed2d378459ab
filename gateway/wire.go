package gateway

import (
	"errors"
	"net/http"

	"github.com/haowjy/tandem-llm-go"
)

// chatRequest is the body of POST /.
type chatRequest struct {
	// Stream selects SSE streaming mode; false returns one aggregate
	// response.
	Stream bool `json:"stream"`

	// Verbose adds per-phase usage frames to streams and per-phase usage
	// plus estimated cost to aggregate responses.
	Verbose bool `json:"verbose"`

	// System is an optional system prompt applied to both phases.
	System string `json:"system"`

	// Model selects an alternate generation provider by model name.
	Model string `json:"model"`

	// Messages is the conversation.
	Messages []tandem.Message `json:"messages"`

	// Per-provider passthrough customization.
	DeepSeekConfig  *tandem.Overrides `json:"deepseek_config"`
	AnthropicConfig *tandem.Overrides `json:"anthropic_config"`
	QwenConfig      *tandem.Overrides `json:"qwen_config"`
	LoremConfig     *tandem.Overrides `json:"lorem_config"`
}

// overrides collects the per-provider config blocks that were present.
func (r *chatRequest) overrides() map[tandem.ProviderID]*tandem.Overrides {
	out := make(map[tandem.ProviderID]*tandem.Overrides)
	if r.DeepSeekConfig != nil {
		out[tandem.ProviderDeepSeek] = r.DeepSeekConfig
	}
	if r.AnthropicConfig != nil {
		out[tandem.ProviderAnthropic] = r.AnthropicConfig
	}
	if r.QwenConfig != nil {
		out[tandem.ProviderQwen] = r.QwenConfig
	}
	if r.LoremConfig != nil {
		out[tandem.ProviderLorem] = r.LoremConfig
	}
	return out
}

// credentialHeaders maps each provider to the request header that may carry
// its API key. Header lookup is case-insensitive.
var credentialHeaders = map[tandem.ProviderID]string{
	tandem.ProviderDeepSeek:  "X-DeepSeek-API-Token",
	tandem.ProviderAnthropic: "X-Anthropic-API-Token",
	tandem.ProviderQwen:      "X-Qwen-API-Token",
	tandem.ProviderLorem:     "X-Lorem-API-Token",
}

// streamFrame is one SSE data payload. Type selects which of the optional
// fields are present.
type streamFrame struct {
	Type      string         `json:"type"`
	Reasoning string         `json:"reasoning,omitempty"`
	Content   []contentBlock `json:"content,omitempty"`
	Phase     tandem.Phase   `json:"phase,omitempty"`
	Usage     *tandem.Usage  `json:"usage,omitempty"`
	Error     *wireError     `json:"error,omitempty"`
}

// contentBlock is one element of a content frame. Clients read
// content[0].text.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// wireError is the client-facing error shape, shared by stream frames and
// aggregate error responses.
type wireError struct {
	Kind     tandem.ErrorKind  `json:"kind"`
	Provider tandem.ProviderID `json:"provider,omitempty"`
	Message  string            `json:"message"`
	Fatal    bool              `json:"fatal"`
}

func reasoningFrame(text string) streamFrame {
	return streamFrame{Type: "reasoning", Reasoning: text}
}

func contentFrame(text string) streamFrame {
	return streamFrame{
		Type:    "content",
		Content: []contentBlock{{Type: "text", Text: text}},
	}
}

func usageFrame(phase tandem.Phase, u tandem.Usage) streamFrame {
	return streamFrame{Type: "usage", Phase: phase, Usage: &u}
}

func doneFrame(total tandem.Usage) streamFrame {
	return streamFrame{Type: "done", Usage: &total}
}

func errorFrame(err error) streamFrame {
	return streamFrame{Type: "error", Error: toWireError(err)}
}

// toWireError flattens any pipeline or provider failure into the wire shape.
func toWireError(err error) *wireError {
	var provErr *tandem.ProviderError
	if errors.As(err, &provErr) {
		return &wireError{
			Kind:     provErr.Kind,
			Provider: provErr.Provider,
			Message:  provErr.Message,
			Fatal:    provErr.Fatal,
		}
	}
	var reqErr *tandem.RequestError
	if errors.As(err, &reqErr) {
		return &wireError{
			Kind:     reqErr.Kind,
			Provider: reqErr.Provider,
			Message:  reqErr.Message,
			Fatal:    true,
		}
	}
	return &wireError{
		Kind:    tandem.KindOf(err),
		Message: err.Error(),
		Fatal:   tandem.IsFatal(err),
	}
}

// errorResponse is the JSON body of a non-200 response.
type errorResponse struct {
	Error *wireError `json:"error"`
}

// aggregateResponse is the 200 body in aggregate mode.
type aggregateResponse struct {
	ReasoningContent string                        `json:"reasoning_content"`
	Content          string                        `json:"content"`
	Usage            tandem.Usage                  `json:"usage"`
	PhaseUsage       map[tandem.Phase]tandem.Usage `json:"phase_usage,omitempty"`
	EstimatedCost    *float64                      `json:"estimated_cost_usd,omitempty"`
	FrameErrors      []*wireError                  `json:"frame_errors,omitempty"`
}

// statusFor maps a pipeline failure to an HTTP status. Request-level
// rejections are the caller's fault; everything upstream is a gateway
// failure.
func statusFor(err error) int {
	switch tandem.KindOf(err) {
	case tandem.KindInvalidRequest, tandem.KindUnsupportedModel:
		return http.StatusBadRequest
	case tandem.KindMissingCredential:
		return http.StatusUnauthorized
	case tandem.KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
