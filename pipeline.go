package tandem

import (
	"context"
	"fmt"
)

// State describes where a pipeline run currently is.
type State string

const (
	// StateIdle means Run has not started.
	StateIdle State = "idle"

	// StateReasoning means the reasoning provider call is in flight.
	StateReasoning State = "reasoning"

	// StateGenerating means the generation provider call is in flight.
	StateGenerating State = "generating"

	// StateComplete means both phases finished and the sink was completed.
	StateComplete State = "complete"

	// StateFailed means the run was aborted by a fatal error.
	StateFailed State = "failed"
)

// ChainRequest is one parsed client request handed to the pipeline by the
// ingress layer.
type ChainRequest struct {
	// Messages is the client conversation.
	Messages []Message

	// System is an optional system prompt applied to both phases.
	System string

	// Model selects an alternate generation provider by model name.
	// Empty selects the default generation adapter and its default model.
	Model string

	// Overrides holds per-provider passthrough customization, keyed by
	// provider ID.
	Overrides map[ProviderID]*Overrides

	// Credentials is the per-request API key bag.
	Credentials Credentials
}

// Pipeline chains a reasoning provider into a generation provider: the full
// reasoning trace of the first call is folded, frozen, and embedded into the
// second call's context. A Pipeline runs one request; create a new one per
// request.
type Pipeline struct {
	reasoning  Adapter
	generation Adapter
	alternates []Adapter

	collector *Collector
	state     State
}

// New builds a pipeline from a reasoning adapter, a default generation
// adapter, and optional alternate generation adapters selectable by model.
func New(reasoning, generation Adapter, alternates ...Adapter) *Pipeline {
	return &Pipeline{
		reasoning:  reasoning,
		generation: generation,
		alternates: alternates,
		collector:  NewCollector(),
		state:      StateIdle,
	}
}

// State returns the current run state.
func (p *Pipeline) State() State {
	return p.state
}

// SelectGeneration resolves the generation adapter for a requested model.
// An empty model selects the default adapter; otherwise the default and the
// alternates are probed in order.
func (p *Pipeline) SelectGeneration(model string) (Adapter, error) {
	if model == "" || p.generation.SupportsModel(model) {
		return p.generation, nil
	}
	for _, alt := range p.alternates {
		if alt.SupportsModel(model) {
			return alt, nil
		}
	}
	return nil, NewRequestError(KindUnsupportedModel, "",
		fmt.Sprintf("no configured provider serves model %q", model))
}

// Validate performs the request-level checks that precede any upstream
// call: message shape, model resolution, and credentials for both phases.
// Run applies the same checks; ingress layers call Validate first so a
// rejection maps to an HTTP status instead of a stream frame.
func (p *Pipeline) Validate(req *ChainRequest) error {
	if err := validateChain(req); err != nil {
		return err
	}
	gen, err := p.SelectGeneration(req.Model)
	if err != nil {
		return err
	}
	for _, adapter := range []Adapter{p.reasoning, gen} {
		if !adapter.RequiresCredential() {
			continue
		}
		if _, err := req.Credentials.Key(adapter.Name()); err != nil {
			return err
		}
	}
	return nil
}

// Usage returns the token accounting accumulated so far: the cross-phase
// total and the per-phase breakdown.
func (p *Pipeline) Usage() (Usage, map[Phase]Usage) {
	return p.collector.Total(), p.collector.ByPhase()
}

// Run executes the two phases sequentially, forwarding normalized events to
// the sink. Request-level validation (messages, model resolution, both
// phases' credentials) happens before any upstream call. Run returns the
// fatal error, or nil after the sink was completed.
func (p *Pipeline) Run(ctx context.Context, req *ChainRequest, sink Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := p.Validate(req); err != nil {
		return p.abort(sink, err)
	}

	gen, err := p.SelectGeneration(req.Model)
	if err != nil {
		return p.abort(sink, err)
	}

	p.state = StateReasoning
	trace := &ReasoningTrace{}
	reasoningReq := &Request{
		Messages:  req.Messages,
		System:    req.System,
		Overrides: req.Overrides[p.reasoning.Name()],
	}
	if err := p.runPhase(ctx, cancel, p.reasoning, reasoningReq, PhaseReasoning, req.Credentials, sink, trace); err != nil {
		return p.abort(sink, err)
	}

	// An empty trace is tolerated: the generation phase runs on the bare
	// conversation.
	p.state = StateGenerating
	generationReq := &Request{
		Messages:  withTrace(req.Messages, trace.Freeze()),
		System:    req.System,
		Model:     req.Model,
		Overrides: req.Overrides[gen.Name()],
	}
	if err := p.runPhase(ctx, cancel, gen, generationReq, PhaseGeneration, req.Credentials, sink, nil); err != nil {
		return p.abort(sink, err)
	}

	p.state = StateComplete
	return sink.Complete(p.collector.Total(), p.collector.ByPhase())
}

// runPhase consumes one adapter call. A non-nil trace marks the reasoning
// phase: reasoning deltas fold into it and content deltas are dropped so no
// reasoning-phase text can reach the answer. Fatal events cancel the
// upstream call; the channel is drained so the adapter goroutine exits.
func (p *Pipeline) runPhase(ctx context.Context, cancel context.CancelFunc, adapter Adapter, req *Request, phase Phase, creds Credentials, sink Sink, trace *ReasoningTrace) error {
	events, err := adapter.Invoke(ctx, req, creds)
	if err != nil {
		return err
	}

	var fatal error
	forward := func(ev Event) {
		if err := sink.Send(phase, ev); err != nil {
			fatal = err
			cancel()
		}
	}

	for ev := range events {
		if fatal != nil {
			continue
		}
		switch ev.Kind {
		case EventReasoningDelta:
			if trace != nil {
				trace.Fold(ev.Text)
			}
			forward(ev)
		case EventContentDelta:
			if trace != nil {
				continue
			}
			forward(ev)
		case EventUsage:
			if ev.Usage != nil {
				p.collector.Add(phase, *ev.Usage)
			}
			forward(ev)
		case EventError:
			if ev.Fatal() {
				fatal = ev.Err
				cancel()
				continue
			}
			forward(ev)
		case EventDone:
			// the channel closes right after
		}
	}

	if fatal == nil && ctx.Err() != nil {
		fatal = ctx.Err()
	}
	return fatal
}

func (p *Pipeline) abort(sink Sink, err error) error {
	p.state = StateFailed
	_ = sink.Fail(err)
	return err
}

// withTrace extends the conversation with the frozen trace as a trailing
// assistant block. Chat APIs require the opening message to be
// user-authored, so the trace trails the conversation as assistant prefill
// rather than preceding it.
func withTrace(messages []Message, trace string) []Message {
	if trace == "" {
		return messages
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, messages...)
	return append(out, Message{Role: RoleAssistant, Content: thinkingBlock(trace)})
}

func validateChain(req *ChainRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return NewRequestError(KindInvalidRequest, "", "messages must not be empty")
	}
	for i, msg := range req.Messages {
		if !ValidRole(msg.Role) {
			return NewRequestError(KindInvalidRequest, "",
				fmt.Sprintf("message %d has unknown role %q", i, msg.Role))
		}
	}
	return nil
}
