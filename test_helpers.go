package tandem

import (
	"context"
	"strings"
)

// Test doubles shared across test files.

// stubAdapter replays a scripted event sequence. It counts invocations and
// records the request it received so tests can assert on phase construction.
type stubAdapter struct {
	id        ProviderID
	prefix    string // SupportsModel matches this model-name prefix
	script    []Event
	needsKey  bool
	invokeErr error

	invoked int
	lastReq *Request
}

func (s *stubAdapter) Invoke(ctx context.Context, req *Request, creds Credentials) (<-chan Event, error) {
	s.invoked++
	s.lastReq = req

	if s.invokeErr != nil {
		return nil, s.invokeErr
	}
	if s.needsKey {
		if _, err := creds.Key(s.id); err != nil {
			return nil, err
		}
	}

	events := make(chan Event, 10)
	go func() {
		defer close(events)
		for _, ev := range s.script {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (s *stubAdapter) Name() ProviderID { return s.id }

func (s *stubAdapter) SupportsModel(model string) bool {
	return s.prefix != "" && strings.HasPrefix(model, s.prefix)
}

func (s *stubAdapter) RequiresCredential() bool { return s.needsKey }

// sinkFrame is one recorded Send call.
type sinkFrame struct {
	phase Phase
	ev    Event
}

// recordingSink captures every sink call in order. sendErrAfter > 0 makes
// Send fail once that many frames have been delivered, simulating a client
// that went away mid-stream.
type recordingSink struct {
	frames    []sinkFrame
	total     Usage
	byPhase   map[Phase]Usage
	completed bool
	failure   error

	sendErrAfter int
	sendErr      error
}

func (r *recordingSink) Send(phase Phase, ev Event) error {
	if r.sendErrAfter > 0 && len(r.frames) >= r.sendErrAfter {
		return r.sendErr
	}
	r.frames = append(r.frames, sinkFrame{phase: phase, ev: ev})
	return nil
}

func (r *recordingSink) Complete(total Usage, byPhase map[Phase]Usage) error {
	r.completed = true
	r.total = total
	r.byPhase = byPhase
	return nil
}

func (r *recordingSink) Fail(err error) error {
	r.failure = err
	return nil
}

// kinds returns the recorded event kinds for one phase, in order.
func (r *recordingSink) kinds(phase Phase) []EventKind {
	var out []EventKind
	for _, f := range r.frames {
		if f.phase == phase {
			out = append(out, f.ev.Kind)
		}
	}
	return out
}
