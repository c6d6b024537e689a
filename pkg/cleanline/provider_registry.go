package cleanline

import (
	"fmt"
	"strings"

	"github.com/harunnryd/cleanline/pkg/adapters/stt"
	"github.com/harunnryd/cleanline/pkg/adapters/tts"
	"github.com/harunnryd/cleanline/pkg/llm"
)

// A factory returning a nil provider with a nil error disables that stage.
type STTFactory func(cfg Config) (stt.Transcriber, error)
type TTSFactory func(cfg Config) (tts.Synthesizer, error)
type LLMFactory func(cfg Config) (llm.LLMAdapter, error)

type ProviderRegistry struct {
	stt map[string]STTFactory
	tts map[string]TTSFactory
	llm map[string]LLMFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt: make(map[string]STTFactory),
		tts: make(map[string]TTSFactory),
		llm: make(map[string]LLMFactory),
	}
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// disabled reports providers that turn an optional stage off.
func disabled(provider string) bool {
	switch normalizeProvider(provider) {
	case "", "none", "disabled":
		return true
	}
	return false
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) BuildSTT(provider string, cfg Config) (stt.Transcriber, error) {
	if disabled(provider) {
		return nil, nil
	}
	fn := r.stt[normalizeProvider(provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildTTS(provider string, cfg Config) (tts.Synthesizer, error) {
	if disabled(provider) {
		return nil, nil
	}
	fn := r.tts[normalizeProvider(provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildLLM(provider string, cfg Config) (llm.LLMAdapter, error) {
	fn := r.llm[normalizeProvider(provider)]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(cfg)
}
