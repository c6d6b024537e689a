package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/cleanline/pkg/resilience"
)

const defaultBaseURL = "https://api.elevenlabs.io"

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	BaseURL      string
	Stability    float64
	Similarity   float64
	Timeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.ModelID == "" {
		c.ModelID = "eleven_turbo_v2_5"
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "mp3_44100_128"
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Stability == 0 {
		c.Stability = 0.5
	}
	if c.Similarity == 0 {
		c.Similarity = 0.8
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	return c
}

// ElevenLabsTTS renders whole replies through the text-to-speech REST endpoint.
type ElevenLabsTTS struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) (*ElevenLabsTTS, error) {
	if cfg.APIKey == "" || cfg.VoiceID == "" {
		return nil, errors.New("missing elevenlabs config")
	}
	cfg = cfg.withDefaults()
	return &ElevenLabsTTS{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (s *ElevenLabsTTS) Name() string { return "elevenlabs_tts" }

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (s *ElevenLabsTTS) Synthesize(ctx context.Context, text, voiceID, modelID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("elevenlabs: empty text")
	}
	if voiceID == "" {
		voiceID = s.cfg.VoiceID
	}
	if modelID == "" {
		modelID = s.cfg.ModelID
	}
	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       s.cfg.Stability,
			SimilarityBoost: s.cfg.Similarity,
		},
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(voiceID), url.QueryEscape(s.cfg.OutputFormat))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resilience.RateLimitError{
			Provider:   "elevenlabs",
			Message:    strings.TrimSpace(string(msg)),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs: empty audio")
	}
	return audio, nil
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
