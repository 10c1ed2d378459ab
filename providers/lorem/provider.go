package lorem

import (
	"context"
	"log"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"

	"github.com/haowjy/tandem-llm-go"
)

const (
	defaultModel          = "lorem-fast"
	defaultReasoningWords = 20
	defaultContentWords   = 40
)

// Config holds the settings for the lorem provider.
type Config struct {
	// Model is the default model when a request names none. The model name
	// controls pacing: lorem-slow, lorem-medium, lorem-fast.
	Model string

	// ReasoningWords is the number of reasoning words streamed per call.
	ReasoningWords int

	// ContentWords is the number of answer words streamed per call.
	ContentWords int
}

// Provider is a mock adapter that streams lorem ipsum text. It emits
// reasoning deltas first and content deltas second, the same shape a real
// chain sees, so development and gateway tests run without API keys.
type Provider struct {
	cfg       Config
	generator *loremgen.Lorem
}

// NewProvider creates a lorem provider with defaults filled in.
func NewProvider(cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.ReasoningWords == 0 {
		cfg.ReasoningWords = defaultReasoningWords
	}
	if cfg.ContentWords == 0 {
		cfg.ContentWords = defaultContentWords
	}

	return &Provider{
		cfg:       cfg,
		generator: loremgen.New(),
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() tandem.ProviderID {
	return tandem.ProviderLorem
}

// SupportsModel returns true if the model name starts with "lorem-".
// Example models: "lorem-fast", "lorem-slow", "lorem-medium"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// RequiresCredential reports that the mock runs without an API key.
func (p *Provider) RequiresCredential() bool {
	return false
}

// Invoke streams generated words as normalized events: reasoning first,
// content second, one usage summary, then done. MaxTokens caps the total
// word count, reasoning words first.
func (p *Provider) Invoke(ctx context.Context, req *tandem.Request, creds tandem.Credentials) (<-chan tandem.Event, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, tandem.NewRequestError(tandem.KindInvalidRequest, p.Name(), "messages must not be empty")
	}

	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	reasoningWords := p.cfg.ReasoningWords
	contentWords := p.cfg.ContentWords
	if req.MaxTokens > 0 {
		if reasoningWords > req.MaxTokens {
			reasoningWords = req.MaxTokens
		}
		if rem := req.MaxTokens - reasoningWords; contentWords > rem {
			contentWords = rem
		}
	}

	events := make(chan tandem.Event, 10) // Buffered to prevent blocking
	go func() {
		defer close(events)

		log.Printf("[LOREM] stream start: model=%s reasoning_words=%d content_words=%d",
			model, reasoningWords, contentWords)

		delay := getStreamDelay(model)

		reasoningSent, err := p.streamWords(ctx, events, tandem.ReasoningDelta, reasoningWords, delay)
		if err != nil {
			events <- tandem.ErrorEvent(tandem.Fatalf(p.Name(), tandem.KindUpstreamTimeout, "stream interrupted: %v", err))
			return
		}

		contentSent, err := p.streamWords(ctx, events, tandem.ContentDelta, contentWords, delay)
		if err != nil {
			events <- tandem.ErrorEvent(tandem.Fatalf(p.Name(), tandem.KindUpstreamTimeout, "stream interrupted: %v", err))
			return
		}

		events <- tandem.UsageSummary(tandem.Usage{
			PromptTokens:     p.estimatePromptTokens(req),
			CompletionTokens: reasoningSent + contentSent,
			ReasoningTokens:  reasoningSent,
		})
		events <- tandem.Done()
	}()

	return events, nil
}

// streamWords sends exactly target words, one delta per word, pausing
// delay between words. Returns the number of words sent.
func (p *Provider) streamWords(ctx context.Context, events chan<- tandem.Event, mk func(string) tandem.Event, target int, delay time.Duration) (int, error) {
	sent := 0
	for sent < target {
		for _, word := range strings.Fields(p.generator.Sentence(5, 15)) {
			if sent >= target {
				break
			}

			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case events <- mk(word + " "):
			}

			time.Sleep(delay)
			sent++
		}
	}
	return sent, nil
}

// getStreamDelay returns the delay between words based on the model name.
// - lorem-slow: 2 words/second (500ms per word)
// - lorem-fast: 30 words/second (33ms per word)
// - lorem-medium: 10 words/second (100ms per word)
// - default: 10 words/second
func getStreamDelay(model string) time.Duration {
	if strings.Contains(model, "slow") {
		return 500 * time.Millisecond // 2 words/second
	}
	if strings.Contains(model, "fast") {
		return 33 * time.Millisecond // 30 words/second
	}
	return 100 * time.Millisecond
}

// estimatePromptTokens estimates the prompt token count for a request.
// Uses word count as a rough approximation.
func (p *Provider) estimatePromptTokens(req *tandem.Request) int {
	totalWords := len(strings.Fields(req.System))
	for _, msg := range req.Messages {
		totalWords += len(strings.Fields(msg.Content))
	}
	return totalWords
}
