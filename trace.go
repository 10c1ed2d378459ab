package tandem

import (
	"fmt"
	"strings"
)

// ReasoningTrace accumulates reasoning text during the reasoning phase.
// Fragments are folded in arrival order. Once frozen the trace is immutable;
// later folds are discarded.
type ReasoningTrace struct {
	sb     strings.Builder
	frozen bool
}

// Fold appends one reasoning fragment. No-op after Freeze.
func (t *ReasoningTrace) Fold(fragment string) {
	if t.frozen {
		return
	}
	t.sb.WriteString(fragment)
}

// Freeze ends the mutable phase and returns the accumulated text.
// Idempotent.
func (t *ReasoningTrace) Freeze() string {
	t.frozen = true
	return t.sb.String()
}

// Text returns the text accumulated so far without freezing.
func (t *ReasoningTrace) Text() string {
	return t.sb.String()
}

// Empty reports whether no reasoning text was accumulated.
func (t *ReasoningTrace) Empty() bool {
	return t.sb.Len() == 0
}

// thinkingBlock wraps a frozen trace for embedding into the generation
// request as a trailing assistant message. Generation models treat the
// tagged block as prior chain-of-thought to condition on.
func thinkingBlock(trace string) string {
	return fmt.Sprintf("<thinking>\n%s\n</thinking>", trace)
}
