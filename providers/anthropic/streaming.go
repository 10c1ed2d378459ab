package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/haowjy/tandem-llm-go"
)

// stream drains one Messages stream into the normalized event channel.
// Token counts are not delivered frame by frame; the SDK accumulator
// rebuilds the final message and its usage is emitted once at the end,
// before the done event.
func (p *Provider) stream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], events chan<- tandem.Event) {
	message := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()

		if err := message.Accumulate(event); err != nil {
			events <- tandem.ErrorEvent(tandem.Fatalf(p.Name(), tandem.KindUpstreamFatal, "accumulate stream event: %v", err))
			return
		}

		ev, ok := translateEvent(event)
		if !ok {
			continue
		}

		select {
		case <-ctx.Done():
			events <- tandem.ErrorEvent(p.classifyStreamError(ctx.Err()))
			return
		case events <- ev:
		}
	}

	if err := stream.Err(); err != nil {
		events <- tandem.ErrorEvent(p.classifyStreamError(err))
		return
	}

	events <- tandem.UsageSummary(tandem.Usage{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
	})
	events <- tandem.Done()
}

// translateEvent converts one Anthropic stream event to a normalized event.
//
// Only content_block_delta frames carry text: thinking_delta maps to a
// reasoning delta and text_delta to a content delta. Block start/stop
// markers, signature deltas, tool-input deltas, and message lifecycle
// frames produce nothing.
func translateEvent(event anthropic.MessageStreamEventUnion) (tandem.Event, bool) {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockDeltaEvent:
		switch e.Delta.Type {
		case "thinking_delta":
			if e.Delta.Thinking != "" {
				return tandem.ReasoningDelta(e.Delta.Thinking), true
			}
		case "text_delta":
			if e.Delta.Text != "" {
				return tandem.ContentDelta(e.Delta.Text), true
			}
		}
	}
	return tandem.Event{}, false
}
