package tandem

import "strings"

// Sink receives the normalized output of a pipeline run. The pipeline calls
// Send for every forwarded event in arrival order, then exactly one of
// Complete or Fail. A Send error aborts the run (the client is gone).
//
// Implementations: Aggregator buffers everything into a Result; the gateway
// provides a streaming sink that writes SSE frames.
type Sink interface {
	// Send delivers one event tagged with the phase that produced it.
	Send(phase Phase, ev Event) error

	// Complete signals a successful run with the final usage accounting.
	Complete(total Usage, byPhase map[Phase]Usage) error

	// Fail signals an aborted run. err is the fatal failure.
	Fail(err error) error
}

// Aggregator is the buffering Sink for aggregate mode. It folds delta text
// into builders and exposes the consolidated Result once the run completes.
// On failure no partial output is observable.
type Aggregator struct {
	reasoning strings.Builder
	content   strings.Builder

	usage     Usage
	byPhase   map[Phase]Usage
	frameErrs []*ProviderError

	failure error
}

// NewAggregator returns an empty aggregate sink.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Send folds delta events into the buffers. Usage events are absorbed (the
// pipeline's collector owns accounting); non-fatal error events are recorded
// for the verbose result.
func (a *Aggregator) Send(phase Phase, ev Event) error {
	switch ev.Kind {
	case EventReasoningDelta:
		a.reasoning.WriteString(ev.Text)
	case EventContentDelta:
		a.content.WriteString(ev.Text)
	case EventError:
		if ev.Err != nil && !ev.Err.Fatal {
			a.frameErrs = append(a.frameErrs, ev.Err)
		}
	}
	return nil
}

// Complete records the final accounting.
func (a *Aggregator) Complete(total Usage, byPhase map[Phase]Usage) error {
	a.usage = total
	a.byPhase = byPhase
	return nil
}

// Fail records the fatal failure and discards buffered output.
func (a *Aggregator) Fail(err error) error {
	a.failure = err
	return nil
}

// Result returns the consolidated output. Valid after the pipeline run
// returned: a failed run yields (nil, failure).
func (a *Aggregator) Result() (*Result, error) {
	if a.failure != nil {
		return nil, a.failure
	}
	return &Result{
		ReasoningContent: a.reasoning.String(),
		Content:          a.content.String(),
		Usage:            a.usage,
		PhaseUsage:       a.byPhase,
		FrameErrors:      a.frameErrs,
	}, nil
}
