package anthropic

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haowjy/tandem-llm-go"
)

// buildMessageParams constructs Anthropic API parameters from a request.
// The Messages API takes the system prompt as a top-level parameter, so
// system-role messages are folded into it instead of being sent inline.
func (p *Provider) buildMessageParams(req *tandem.Request) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	var systemParts []string
	if req.System != "" {
		systemParts = append(systemParts, req.System)
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case tandem.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case tandem.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case tandem.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			return anthropic.MessageNewParams{}, tandem.NewRequestError(
				tandem.KindInvalidRequest, p.Name(), fmt.Sprintf("message %d: unsupported role %q", i, msg.Role))
		}
	}
	if len(messages) == 0 {
		return anthropic.MessageNewParams{}, tandem.NewRequestError(
			tandem.KindInvalidRequest, p.Name(), "at least one user or assistant message is required")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if len(systemParts) > 0 {
		params.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: strings.Join(systemParts, "\n\n"),
			},
		}
	}

	return params, nil
}

// requestOptions applies caller overrides to one SDK call. Credential
// headers never come from overrides, and the stream and messages fields
// stay under this package's control.
func requestOptions(req *tandem.Request) []option.RequestOption {
	if req.Overrides == nil {
		return nil
	}

	var opts []option.RequestOption
	for name, value := range req.Overrides.Headers {
		if protectedHeader(name) {
			continue
		}
		opts = append(opts, option.WithHeader(name, value))
	}
	for _, key := range req.Overrides.BodyKeys("stream", "messages") {
		opts = append(opts, option.WithJSONSet(key, req.Overrides.Body[key]))
	}
	return opts
}

func protectedHeader(name string) bool {
	return http.CanonicalHeaderKey(name) == "Authorization" || strings.EqualFold(name, "x-api-key")
}
