package tts

import "context"

// Synthesizer defines the contract for any TTS vendor implementation.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize renders text as audio bytes. Empty voiceID or modelID
	// select the vendor's configured defaults.
	Synthesize(ctx context.Context, text, voiceID, modelID string) ([]byte, error)
}

// Config contains vendor-agnostic synthesis defaults.
type Config struct {
	VoiceID     string
	ModelID     string
	ContentType string
}
