package deepseek

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/haowjy/tandem-llm-go"
)

// streamEvents reads SSE frames and emits normalized events. Undecodable
// frames become non-fatal error events and reading continues; a returned
// error is fatal and ends the stream. In ReasoningOnly mode the first answer
// token stops the read, releasing the upstream connection early.
func (p *Provider) streamEvents(ctx context.Context, body io.Reader, events chan<- tandem.Event) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		// Parse SSE data line
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		// Check for termination
		if data == "[DONE]" {
			return nil
		}

		for _, ev := range decodeFrame(data) {
			if ev.Fatal() {
				return ev.Err
			}
			if p.cfg.ReasoningOnly && ev.Kind == tandem.EventContentDelta {
				return nil
			}
			events <- ev
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}

// decodeFrame translates one upstream data payload into normalized events.
// Candidate schemas are tried in order, first success wins; a payload
// matching none yields a single non-fatal malformed-frame event carrying the
// raw payload. The translation is a pure function of the payload.
func decodeFrame(data string) []tandem.Event {
	decoders := []func(string) ([]tandem.Event, bool){
		decodeErrorEnvelope,
		decodeStandardChunk,
		decodeAliasChunk,
		decodeSegmentChunk,
	}

	for _, decode := range decoders {
		if events, ok := decode(data); ok {
			return events
		}
	}
	return []tandem.Event{tandem.ErrorEvent(tandem.MalformedFrame(tandem.ProviderDeepSeek, data))}
}

// decodeErrorEnvelope matches mid-stream error payloads
// ({"error":{"message":...}}) and yields a fatal event.
func decodeErrorEnvelope(data string) ([]tandem.Event, bool) {
	msg := gjson.Get(data, "error.message")
	if !msg.Exists() || msg.String() == "" {
		return nil, false
	}
	perr := tandem.Fatalf(tandem.ProviderDeepSeek, tandem.KindUpstreamFatal, "upstream error: %s", msg.String())
	return []tandem.Event{tandem.ErrorEvent(perr)}, true
}

// decodeStandardChunk matches the documented chat.completion.chunk schema:
// reasoning text under delta.reasoning_content, answer text under a string
// delta.content, usage on the final frame. Role-only and finish-only frames
// match with no events.
func decodeStandardChunk(data string) ([]tandem.Event, bool) {
	var c chunk
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, false
	}

	// Claim the frame only when it carries a field this schema understands;
	// otherwise an alias frame would match here with its text dropped.
	matched := c.Usage != nil
	var events []tandem.Event
	if len(c.Choices) > 0 {
		d := c.Choices[0].Delta
		matched = matched || d.Role != nil || d.Content != nil ||
			d.ReasoningContent != nil || c.Choices[0].FinishReason != nil
		if d.ReasoningContent != nil && *d.ReasoningContent != "" {
			events = append(events, tandem.ReasoningDelta(*d.ReasoningContent))
		}
		if d.Content != nil && *d.Content != "" {
			events = append(events, tandem.ContentDelta(*d.Content))
		}
	}
	if c.Usage != nil {
		events = append(events, tandem.UsageSummary(c.Usage.toUsage()))
	}
	if !matched {
		return nil, false
	}
	return events, true
}

// decodeAliasChunk matches deployments that rename the reasoning field to
// delta.reasoning or delta.thinking.
func decodeAliasChunk(data string) ([]tandem.Event, bool) {
	if !gjson.Get(data, "choices.0.delta").Exists() {
		return nil, false
	}

	var events []tandem.Event
	for _, path := range []string{"choices.0.delta.reasoning", "choices.0.delta.thinking"} {
		if v := gjson.Get(data, path); v.Exists() && v.Type == gjson.String {
			if v.String() != "" {
				events = append(events, tandem.ReasoningDelta(v.String()))
			}
			return events, true
		}
	}
	return nil, false
}

// decodeSegmentChunk matches deployments that send delta.content as an array
// of typed segments instead of a plain string.
func decodeSegmentChunk(data string) ([]tandem.Event, bool) {
	content := gjson.Get(data, "choices.0.delta.content")
	if !content.IsArray() {
		return nil, false
	}

	var events []tandem.Event
	for _, seg := range content.Array() {
		text := seg.Get("text").String()
		if text == "" {
			continue
		}
		switch seg.Get("type").String() {
		case "reasoning", "thinking":
			events = append(events, tandem.ReasoningDelta(text))
		default:
			events = append(events, tandem.ContentDelta(text))
		}
	}
	return events, true
}
