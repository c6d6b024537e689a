package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type TTSConfig struct {
	Audio []byte
	Err   error
	Delay time.Duration
}

// Synthesizer returns fixed audio bytes and counts invocations.
type Synthesizer struct {
	cfg   TTSConfig
	calls atomic.Int64
	mu    sync.Mutex
	texts []string
}

func NewTTS(cfg TTSConfig) *Synthesizer {
	if cfg.Audio == nil && cfg.Err == nil {
		cfg.Audio = []byte("ID3mock-audio")
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceID, modelID string) ([]byte, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.cfg.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.Delay):
		}
	}
	if s.cfg.Err != nil {
		return nil, s.cfg.Err
	}
	return s.cfg.Audio, nil
}

// Calls returns how many times Synthesize ran.
func (s *Synthesizer) Calls() int {
	return int(s.calls.Load())
}
