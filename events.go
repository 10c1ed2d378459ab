package tandem

// EventKind discriminates the variants of a normalized stream Event.
type EventKind string

const (
	// EventReasoningDelta carries an incremental fragment of reasoning text.
	EventReasoningDelta EventKind = "reasoning_delta"

	// EventContentDelta carries an incremental fragment of answer text.
	EventContentDelta EventKind = "content_delta"

	// EventUsage carries a token usage summary for the current phase.
	EventUsage EventKind = "usage"

	// EventDone signals normal end of the provider stream.
	EventDone EventKind = "done"

	// EventError carries an upstream failure. Non-fatal errors describe a
	// single undecodable frame and the stream continues; fatal errors end
	// the stream.
	EventError EventKind = "error"
)

// Event is a single normalized unit of provider output. Exactly one payload
// field is populated, selected by Kind. Adapters produce Events; the pipeline
// and sinks consume them without any knowledge of the upstream wire format.
type Event struct {
	// Kind selects the variant.
	Kind EventKind

	// Text is the fragment payload for reasoning and content deltas.
	Text string

	// Usage is the token summary payload for usage events (nil otherwise).
	Usage *Usage

	// Err is the failure payload for error events (nil otherwise).
	Err *ProviderError
}

// ReasoningDelta returns an event carrying a reasoning text fragment.
func ReasoningDelta(text string) Event {
	return Event{Kind: EventReasoningDelta, Text: text}
}

// ContentDelta returns an event carrying an answer text fragment.
func ContentDelta(text string) Event {
	return Event{Kind: EventContentDelta, Text: text}
}

// UsageSummary returns an event carrying a phase usage summary.
func UsageSummary(u Usage) Event {
	n := u.Normalized()
	return Event{Kind: EventUsage, Usage: &n}
}

// Done returns the end-of-stream event.
func Done() Event {
	return Event{Kind: EventDone}
}

// ErrorEvent returns an event carrying an upstream failure.
func ErrorEvent(err *ProviderError) Event {
	return Event{Kind: EventError, Err: err}
}

// Fatal reports whether the event is an error event that ends its phase.
func (e Event) Fatal() bool {
	return e.Kind == EventError && e.Err != nil && e.Err.Fatal
}
