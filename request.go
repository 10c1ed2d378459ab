package tandem

// Message roles accepted in a conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in the conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser, RoleAssistant
	Role string `json:"role"`

	// Content is the plain text of the message
	Content string `json:"content"`
}

// ValidRole reports whether role is one of the accepted message roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Request contains the parameters for one provider call. The pipeline builds
// one Request per phase; the Adapter that receives it owns it for the
// duration of that call.
type Request struct {
	// Messages contains the conversation in order.
	Messages []Message

	// System is an optional system prompt. Adapters place it wherever
	// their wire format expects (leading system message, top-level field),
	// or drop it when the upstream rejects system prompts.
	System string

	// Model overrides the adapter's configured default model when set.
	Model string

	// MaxTokens caps the response length; zero means the adapter default.
	MaxTokens int

	// Overrides carries caller-supplied provider-specific headers and body
	// fields, applied after the adapter builds its wire request.
	Overrides *Overrides
}
