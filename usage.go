package tandem

import "sync"

// Phase identifies which pipeline phase produced an event or usage record.
type Phase string

const (
	// PhaseReasoning is the first phase: the call that produces the trace.
	PhaseReasoning Phase = "reasoning"

	// PhaseGeneration is the second phase: the call that produces the answer.
	PhaseGeneration Phase = "generation"
)

// Usage is a normalized token count summary. Fields a provider omits stay
// zero; absence is data, not an error.
type Usage struct {
	// PromptTokens counts tokens in the request.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens counts tokens in the response, reasoning included
	// when the provider bills them together.
	CompletionTokens int `json:"completion_tokens"`

	// ReasoningTokens counts reasoning-only tokens when the provider
	// reports them separately (zero otherwise).
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`

	// TotalTokens is the provider-reported total, recomputed from the
	// parts when absent.
	TotalTokens int `json:"total_tokens"`
}

// Normalized returns the usage with TotalTokens filled from the parts when
// the provider omitted it.
func (u Usage) Normalized() Usage {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

// Add accumulates another usage record into u.
func (u *Usage) Add(o Usage) {
	o = o.Normalized()
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.ReasoningTokens += o.ReasoningTokens
	u.TotalTokens += o.TotalTokens
}

// Collector sums usage across pipeline phases. A provider may report usage
// in several partial events within one phase; all of them are added.
type Collector struct {
	mu     sync.Mutex
	phases map[Phase]Usage
}

// NewCollector returns an empty usage collector.
func NewCollector() *Collector {
	return &Collector{phases: make(map[Phase]Usage)}
}

// Add records a usage summary against a phase.
func (c *Collector) Add(phase Phase, u Usage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.phases[phase]
	total.Add(u)
	c.phases[phase] = total
}

// Phase returns the accumulated usage for one phase.
func (c *Collector) Phase(phase Phase) Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phases[phase]
}

// Total returns the straight sum across phases.
func (c *Collector) Total() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total Usage
	for _, u := range c.phases {
		total.Add(u)
	}
	return total
}

// ByPhase returns a copy of the per-phase breakdown.
func (c *Collector) ByPhase() map[Phase]Usage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[Phase]Usage, len(c.phases))
	for phase, u := range c.phases {
		out[phase] = u
	}
	return out
}
