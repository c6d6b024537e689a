package deepgram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/harunnryd/cleanline/pkg/logging"
)

type Config struct {
	APIKey   string
	Model    string
	Language string
}

// fetchFunc transcribes a hosted recording and returns the best transcript.
type fetchFunc func(ctx context.Context, url string) (string, error)

// RecordingSTT transcribes voicemail-style recordings with the Deepgram
// prerecorded API. Deepgram fetches the media itself.
type RecordingSTT struct {
	cfg    Config
	fetch  fetchFunc
	logger *slog.Logger
}

func New(cfg Config) (*RecordingSTT, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing deepgram api key")
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	s := &RecordingSTT{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}
	dg := api.New(client.NewREST(cfg.APIKey, &interfaces.ClientOptions{}))
	s.fetch = func(ctx context.Context, url string) (string, error) {
		res, err := dg.FromURL(ctx, url, &interfaces.PreRecordedTranscriptionOptions{
			Model:       cfg.Model,
			Language:    cfg.Language,
			Punctuate:   true,
			SmartFormat: true,
		})
		if err != nil {
			return "", err
		}
		if res == nil || res.Results == nil || len(res.Results.Channels) == 0 {
			return "", nil
		}
		alts := res.Results.Channels[0].Alternatives
		if len(alts) == 0 {
			return "", nil
		}
		return alts[0].Transcript, nil
	}
	return s, nil
}

func (s *RecordingSTT) Name() string { return "deepgram_prerecorded" }

func (s *RecordingSTT) TranscribeURL(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", errors.New("deepgram: empty recording url")
	}
	transcript, err := s.fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("deepgram: transcribe: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	s.logger.Debug("recording_transcribed",
		slog.String("model", s.cfg.Model),
		slog.Int("chars", len(transcript)))
	return transcript, nil
}
