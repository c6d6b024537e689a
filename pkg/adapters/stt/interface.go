package stt

import "context"

// Transcriber turns a stored call recording into text.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// TranscribeURL fetches and transcribes the recording at url.
	TranscribeURL(ctx context.Context, url string) (string, error)
}

// Config contains vendor-agnostic transcription configuration.
type Config struct {
	Model    string
	Language string
}
