package provider

import "context"

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Message is one role-tagged line of a conversation. Roles follow the
// OpenAI convention: system, user, assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a synchronous chat-completion backend. All conversational
// state is carried in the messages slice; providers retain nothing between
// calls. Recognized options: "temperature" (float64), "max_tokens" (int).
type Provider interface {
	Chat(ctx context.Context, model string, messages []Message, options map[string]interface{}) (string, error)
}

// FloatOption reads a float option with a default.
func FloatOption(options map[string]interface{}, key string, def float64) float64 {
	if options == nil {
		return def
	}
	if v, ok := options[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		}
	}
	return def
}

// IntOption reads an integer option with a default.
func IntOption(options map[string]interface{}, key string, def int) int {
	if options == nil {
		return def
	}
	if v, ok := options[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}
