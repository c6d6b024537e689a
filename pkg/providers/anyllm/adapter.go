// Package anyllm adapts github.com/mozilla-ai/any-llm-go so any backend it
// supports (anthropic, gemini, ollama, mistral, groq, deepseek, openai) can
// serve completions.
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/harunnryd/cleanline/pkg/llm"
)

type Config struct {
	Backend string
	Model   string
	APIKey  string
	BaseURL string
}

// Adapter implements llm.LLMAdapter over an any-llm-go backend.
type Adapter struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Backend == "" {
		return nil, errors.New("anyllm: backend is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("anyllm: model is required")
	}
	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}
	backend, err := createBackend(cfg.Backend, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", cfg.Backend, err)
	}
	return newWithBackend(backend, strings.ToLower(cfg.Backend), cfg.Model), nil
}

func newWithBackend(backend anyllmlib.Provider, name, model string) *Adapter {
	return &Adapter{backend: backend, name: name, model: model}
}

func createBackend(name string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(name) {
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "openai":
		return anyllmoai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q", name)
	}
}

func (a *Adapter) Name() string { return "anyllm/" + a.name }

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	resp, err := a.backend.Completion(ctx, a.buildParams(input))
	if err != nil {
		return llm.Response{}, fmt.Errorf("anyllm %s: completion: %w", a.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return llm.Response{}, fmt.Errorf("anyllm %s: empty choices in response", a.name)
	}
	choice := resp.Choices[0]
	out := llm.Response{
		Text:         choice.Message.ContentString(),
		FinishReason: string(choice.FinishReason),
	}
	if resp.Usage != nil {
		out.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (a *Adapter) buildParams(input llm.Context) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(input.Messages)+1)
	if input.System != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: input.System})
	}
	for _, m := range input.Messages {
		messages = append(messages, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}
	params := anyllmlib.CompletionParams{
		Model:    a.model,
		Messages: messages,
	}
	if input.Temperature != nil {
		t := *input.Temperature
		params.Temperature = &t
	}
	if input.MaxTokens > 0 {
		mt := input.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}
