package mock

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/cleanline/pkg/llm"
)

type LLMConfig struct {
	ResponseText string
	Err          error
	// Delay blocks Generate until it elapses or the context is done.
	Delay time.Duration
}

// LLMAdapter returns a canned reply and records every input it receives.
type LLMAdapter struct {
	cfg    LLMConfig
	mu     sync.Mutex
	inputs []llm.Context
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" && cfg.Err == nil {
		cfg.ResponseText = "mock response"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	a.mu.Lock()
	a.inputs = append(a.inputs, input)
	a.mu.Unlock()
	if a.cfg.Delay > 0 {
		select {
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		case <-time.After(a.cfg.Delay):
		}
	}
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	return llm.Response{Text: a.cfg.ResponseText, FinishReason: "stop"}, nil
}

// Calls returns the inputs passed to Generate so far.
func (a *LLMAdapter) Calls() []llm.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Context, len(a.inputs))
	copy(out, a.inputs)
	return out
}
