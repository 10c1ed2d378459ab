package qwen

import (
	"encoding/json"
	"fmt"

	"github.com/haowjy/tandem-llm-go"
)

// chatRequest is the DashScope compatible-mode request body.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chunk is one streamed completion frame.
type chunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type delta struct {
	Role             *string `json:"role"`
	Content          *string `json:"content"`
	ReasoningContent *string `json:"reasoning_content"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *usage) toUsage() tandem.Usage {
	out := tandem.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	return out.Normalized()
}

// buildRequestBody serializes one streaming chat completion request.
// System prompts are not forwarded: DashScope requests carry user and
// assistant turns only, and the system field stays protected against
// overrides so one cannot be smuggled back in.
func (p *Provider) buildRequestBody(req *tandem.Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case tandem.RoleSystem:
			continue
		case tandem.RoleUser, tandem.RoleAssistant:
			messages = append(messages, chatMessage{Role: msg.Role, Content: msg.Content})
		default:
			return nil, tandem.NewRequestError(
				tandem.KindInvalidRequest, p.Name(), fmt.Sprintf("message %d: unsupported role %q", i, msg.Role))
		}
	}
	if len(messages) == 0 {
		return nil, tandem.NewRequestError(
			tandem.KindInvalidRequest, p.Name(), "at least one user or assistant message is required")
	}

	body, err := json.Marshal(chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
		Stream:    true,
	})
	if err != nil {
		return nil, err
	}

	return req.Overrides.Apply(body, "stream", "messages", "system")
}
