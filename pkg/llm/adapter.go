package llm

import "context"

// Roles used in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Context is the provider-neutral input for a single completion.
type Context struct {
	System      string
	Messages    []Message
	MaxTokens   int
	// Temperature is nil when the provider default applies.
	Temperature *float64
}

// Temperature returns a pointer for Context.Temperature.
func Temperature(v float64) *float64 { return &v }

// UserPrompt builds a Context holding a single user message.
func UserPrompt(system, text string, maxTokens int, temperature *float64) Context {
	return Context{
		System:      system,
		Messages:    []Message{{Role: RoleUser, Content: text}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

type LLMAdapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Name() string
}
