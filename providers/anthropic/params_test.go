package anthropic

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/haowjy/tandem-llm-go"
)

func TestBuildMessageParams_Defaults(t *testing.T) {
	p := NewProvider(Config{})
	params, err := p.buildMessageParams(&tandem.Request{
		Messages: []tandem.Message{{Role: tandem.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("buildMessageParams() error = %v", err)
	}

	if string(params.Model) != defaultModel {
		t.Errorf("Model = %q, want %q", params.Model, defaultModel)
	}
	if params.MaxTokens != int64(defaultMaxTokens) {
		t.Errorf("MaxTokens = %d, want %d", params.MaxTokens, defaultMaxTokens)
	}
	if len(params.System) != 0 {
		t.Errorf("System = %+v, want empty", params.System)
	}
}

func TestBuildMessageParams_RequestWinsOverConfig(t *testing.T) {
	p := NewProvider(Config{Model: "claude-haiku-4-5", MaxTokens: 1024})
	params, err := p.buildMessageParams(&tandem.Request{
		Messages:  []tandem.Message{{Role: tandem.RoleUser, Content: "hi"}},
		Model:     "claude-opus-4-1",
		MaxTokens: 2048,
	})
	if err != nil {
		t.Fatalf("buildMessageParams() error = %v", err)
	}

	if string(params.Model) != "claude-opus-4-1" {
		t.Errorf("Model = %q, want claude-opus-4-1", params.Model)
	}
	if params.MaxTokens != 2048 {
		t.Errorf("MaxTokens = %d, want 2048", params.MaxTokens)
	}
}

func TestBuildMessageParams_RoleMapping(t *testing.T) {
	p := NewProvider(Config{})
	params, err := p.buildMessageParams(&tandem.Request{
		Messages: []tandem.Message{
			{Role: tandem.RoleUser, Content: "question"},
			{Role: tandem.RoleAssistant, Content: "<thinking>\ntrace\n</thinking>"},
		},
	})
	if err != nil {
		t.Fatalf("buildMessageParams() error = %v", err)
	}

	raw, err := json.Marshal(params.Messages)
	if err != nil {
		t.Fatalf("marshal messages: %v", err)
	}
	if got := gjson.GetBytes(raw, "0.role").String(); got != "user" {
		t.Errorf("message 0 role = %q, want user", got)
	}
	if got := gjson.GetBytes(raw, "0.content.0.text").String(); got != "question" {
		t.Errorf("message 0 text = %q, want question", got)
	}
	if got := gjson.GetBytes(raw, "1.role").String(); got != "assistant" {
		t.Errorf("message 1 role = %q, want assistant", got)
	}
	if got := gjson.GetBytes(raw, "1.content.0.text").String(); got != "<thinking>\ntrace\n</thinking>" {
		t.Errorf("message 1 text = %q, want the thinking block", got)
	}
}

func TestBuildMessageParams_SystemFolding(t *testing.T) {
	p := NewProvider(Config{})
	params, err := p.buildMessageParams(&tandem.Request{
		System: "be terse",
		Messages: []tandem.Message{
			{Role: tandem.RoleSystem, Content: "answer in french"},
			{Role: tandem.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("buildMessageParams() error = %v", err)
	}

	if len(params.System) != 1 {
		t.Fatalf("System has %d blocks, want 1", len(params.System))
	}
	if params.System[0].Text != "be terse\n\nanswer in french" {
		t.Errorf("System text = %q, want folded prompt", params.System[0].Text)
	}
	if len(params.Messages) != 1 {
		t.Errorf("Messages has %d entries, system role must not be sent inline", len(params.Messages))
	}
}

func TestBuildMessageParams_Rejections(t *testing.T) {
	p := NewProvider(Config{})

	tests := []struct {
		name     string
		messages []tandem.Message
	}{
		{
			name:     "unknown role",
			messages: []tandem.Message{{Role: "tool", Content: "x"}},
		},
		{
			name:     "only system messages",
			messages: []tandem.Message{{Role: tandem.RoleSystem, Content: "x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.buildMessageParams(&tandem.Request{Messages: tt.messages})
			if !errors.Is(err, tandem.ErrInvalidRequest) {
				t.Errorf("buildMessageParams() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestProtectedHeader(t *testing.T) {
	protected := []string{"Authorization", "authorization", "X-Api-Key", "x-api-key"}
	for _, name := range protected {
		if !protectedHeader(name) {
			t.Errorf("protectedHeader(%q) = false, want true", name)
		}
	}
	if protectedHeader("Anthropic-Version") {
		t.Error("protectedHeader(Anthropic-Version) = true, want false")
	}
}
