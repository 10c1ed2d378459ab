package qwen

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

// streamEvents reads the SSE body line by line and forwards normalized
// events. A frame that matches no known schema becomes a recoverable
// error event rather than being dropped, so consumers can tell skipped
// output from clean output.
func (p *Provider) streamEvents(ctx context.Context, body io.Reader, events chan<- tandem.Event) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		for _, ev := range decodeFrame(data) {
			if ev.Fatal() {
				return ev.Err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case events <- ev:
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

// decodeFrame normalizes one wire frame. Candidates are tried in order;
// the first schema that recognizes the frame wins.
func decodeFrame(data string) []tandem.Event {
	if events, ok := decodeErrorEnvelope(data); ok {
		return events
	}
	if events, ok := decodeChunk(data); ok {
		return events
	}
	return []tandem.Event{tandem.ErrorEvent(tandem.MalformedFrame(tandem.ProviderQwen, data))}
}

// decodeErrorEnvelope matches in-stream error payloads.
func decodeErrorEnvelope(data string) ([]tandem.Event, bool) {
	msg := gjson.Get(data, "error.message")
	if !msg.Exists() || msg.String() == "" {
		return nil, false
	}
	return []tandem.Event{
		tandem.ErrorEvent(tandem.Fatalf(tandem.ProviderQwen, tandem.KindUpstreamFatal, "upstream error: %s", msg.String())),
	}, true
}

// decodeChunk matches the compatible-mode completion chunk. The frame is
// claimed only when it carries a field this schema understands, so junk
// that happens to be valid JSON still falls through to the malformed path.
func decodeChunk(data string) ([]tandem.Event, bool) {
	var c chunk
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, false
	}

	matched := c.Usage != nil
	var events []tandem.Event

	if len(c.Choices) > 0 {
		d := c.Choices[0].Delta
		matched = matched || d.Role != nil || d.Content != nil || d.ReasoningContent != nil || c.Choices[0].FinishReason != nil

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
