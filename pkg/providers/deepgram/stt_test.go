package deepgram

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestTranscribeURLTrimsTranscript(t *testing.T) {
	var gotURL string
	s := &RecordingSTT{
		cfg:    Config{Model: "nova-2"},
		logger: slog.Default(),
		fetch: func(_ context.Context, url string) (string, error) {
			gotURL = url
			return "  I need a deep clean on Saturday. ", nil
		},
	}
	text, err := s.TranscribeURL(context.Background(), "https://api.twilio.com/rec/RE1")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "I need a deep clean on Saturday." || gotURL != "https://api.twilio.com/rec/RE1" {
		t.Fatalf("unexpected text=%q url=%q", text, gotURL)
	}
}

func TestTranscribeURLErrors(t *testing.T) {
	s := &RecordingSTT{
		logger: slog.Default(),
		fetch: func(context.Context, string) (string, error) {
			return "", errors.New("403")
		},
	}
	if _, err := s.TranscribeURL(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := s.TranscribeURL(context.Background(), "https://x"); err == nil {
		t.Fatalf("expected fetch error")
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
