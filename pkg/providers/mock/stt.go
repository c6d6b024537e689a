package mock

import (
	"context"
	"sync"
)

type STTConfig struct {
	Transcript string
	Err        error
}

// Transcriber returns a fixed transcript for any recording url.
type Transcriber struct {
	cfg  STTConfig
	mu   sync.Mutex
	urls []string
}

func NewSTT(cfg STTConfig) *Transcriber {
	return &Transcriber{cfg: cfg}
}

func (s *Transcriber) Name() string { return "mock_stt" }

func (s *Transcriber) TranscribeURL(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	s.urls = append(s.urls, url)
	s.mu.Unlock()
	if s.cfg.Err != nil {
		return "", s.cfg.Err
	}
	return s.cfg.Transcript, nil
}

// URLs returns the recording urls seen so far.
func (s *Transcriber) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}
