package tandem

// Result contains the consolidated output of a completed pipeline run in
// aggregate mode.
type Result struct {
	// ReasoningContent is the reasoning text, folded in arrival order.
	ReasoningContent string `json:"reasoning_content"`

	// Content is the answer text, folded in arrival order. Derived only
	// from generation-phase content deltas.
	Content string `json:"content"`

	// Usage is the summed token accounting across both phases.
	Usage Usage `json:"usage"`

	// PhaseUsage is the per-phase breakdown, for verbose responses.
	PhaseUsage map[Phase]Usage `json:"phase_usage,omitempty"`

	// FrameErrors lists the non-fatal upstream frame failures observed
	// while the run still completed.
	FrameErrors []*ProviderError `json:"-"`
}
