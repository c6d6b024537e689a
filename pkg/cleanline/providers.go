package cleanline

import (
	"errors"
	"time"

	"github.com/harunnryd/cleanline/pkg/adapters/stt"
	"github.com/harunnryd/cleanline/pkg/adapters/tts"
	"github.com/harunnryd/cleanline/pkg/configutil"
	"github.com/harunnryd/cleanline/pkg/llm"
	"github.com/harunnryd/cleanline/pkg/providers/anyllm"
	"github.com/harunnryd/cleanline/pkg/providers/deepgram"
	"github.com/harunnryd/cleanline/pkg/providers/elevenlabs"
	"github.com/harunnryd/cleanline/pkg/providers/mock"
	"github.com/harunnryd/cleanline/pkg/providers/openai"
)

type openAISettings struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

type anyLLMSettings struct {
	Backend string `mapstructure:"backend"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type mockLLMSettings struct {
	Response string `mapstructure:"response"`
	Error    string `mapstructure:"error"`
	DelayMS  int    `mapstructure:"delay_ms"`
}

type elevenlabsSettings struct {
	APIKey       string  `mapstructure:"api_key"`
	VoiceID      string  `mapstructure:"voice_id"`
	ModelID      string  `mapstructure:"model_id"`
	OutputFormat string  `mapstructure:"output_format"`
	BaseURL      string  `mapstructure:"base_url"`
	Stability    float64 `mapstructure:"stability"`
	Similarity   float64 `mapstructure:"similarity"`
}

type mockTTSSettings struct {
	Error string `mapstructure:"error"`
}

type deepgramSettings struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

type mockSTTSettings struct {
	Transcript string `mapstructure:"transcript"`
}

// DefaultProviderRegistry registers every built-in vendor.
func DefaultProviderRegistry() *ProviderRegistry {
	r := NewProviderRegistry()

	r.RegisterLLM("openai", func(cfg Config) (llm.LLMAdapter, error) {
		var s openAISettings
		if err := configutil.Load("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "base_url", "timeout_ms"},
		}, &s); err != nil {
			return nil, err
		}
		return openai.NewAdapter(openai.Config{
			APIKey:  s.APIKey,
			Model:   s.Model,
			BaseURL: s.BaseURL,
			Timeout: configutil.Millis(s.TimeoutMS, 30*time.Second),
		})
	})
	r.RegisterLLM("anyllm", func(cfg Config) (llm.LLMAdapter, error) {
		var s anyLLMSettings
		if err := configutil.Load("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Required: []string{"backend", "model"},
			Optional: []string{"api_key", "base_url"},
		}, &s); err != nil {
			return nil, err
		}
		return anyllm.NewAdapter(anyllm.Config{Backend: s.Backend, Model: s.Model, APIKey: s.APIKey, BaseURL: s.BaseURL})
	})
	r.RegisterLLM("mock", func(cfg Config) (llm.LLMAdapter, error) {
		var s mockLLMSettings
		if err := configutil.Load("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Optional: []string{"response", "error", "delay_ms"},
		}, &s); err != nil {
			return nil, err
		}
		mc := mock.LLMConfig{ResponseText: s.Response, Delay: configutil.Millis(s.DelayMS, 0)}
		if s.Error != "" {
			mc.Err = errors.New(s.Error)
		}
		return mock.NewLLMAdapter(mc), nil
	})

	r.RegisterTTS("elevenlabs", func(cfg Config) (tts.Synthesizer, error) {
		var s elevenlabsSettings
		if err := configutil.Load("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Required: []string{"api_key", "voice_id"},
			Optional: []string{"model_id", "output_format", "base_url", "stability", "similarity"},
		}, &s); err != nil {
			return nil, err
		}
		return elevenlabs.New(elevenlabs.Config{
			APIKey:       s.APIKey,
			VoiceID:      s.VoiceID,
			ModelID:      s.ModelID,
			OutputFormat: s.OutputFormat,
			BaseURL:      s.BaseURL,
			Stability:    s.Stability,
			Similarity:   s.Similarity,
			Timeout:      configutil.Millis(cfg.Audio.TimeoutMS, 8*time.Second),
		})
	})
	r.RegisterTTS("mock", func(cfg Config) (tts.Synthesizer, error) {
		var s mockTTSSettings
		if err := configutil.Load("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"error"},
		}, &s); err != nil {
			return nil, err
		}
		mc := mock.TTSConfig{}
		if s.Error != "" {
			mc.Err = errors.New(s.Error)
		}
		return mock.NewTTS(mc), nil
	})

	r.RegisterSTT("deepgram", func(cfg Config) (stt.Transcriber, error) {
		var s deepgramSettings
		if err := configutil.Load("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "language"},
		}, &s); err != nil {
			return nil, err
		}
		return deepgram.New(deepgram.Config{APIKey: s.APIKey, Model: s.Model, Language: s.Language})
	})
	r.RegisterSTT("mock", func(cfg Config) (stt.Transcriber, error) {
		var s mockSTTSettings
		if err := configutil.Load("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Optional: []string{"transcript"},
		}, &s); err != nil {
			return nil, err
		}
		return mock.NewSTT(mock.STTConfig{Transcript: s.Transcript}), nil
	})
	return r
}

// voiceSettings returns the voice and model ids passed per synthesis call.
func voiceSettings(cfg Config) (voiceID, modelID string) {
	var s elevenlabsSettings
	_ = configutil.DecodeSettings(cfg.Vendors.TTS.Settings, &s)
	return s.VoiceID, s.ModelID
}
