// Package audio resolves reply text to a publicly reachable speech asset,
// synthesizing at most once per distinct text.
package audio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/harunnryd/cleanline/pkg/adapters/tts"
	"github.com/harunnryd/cleanline/pkg/errorsx"
	"github.com/harunnryd/cleanline/pkg/logging"
	"github.com/harunnryd/cleanline/pkg/metrics"
)

// PathPrefix is where assets are served.
const PathPrefix = "/audio/"

type Config struct {
	PublicURL string
	VoiceID   string
	ModelID   string
	Timeout   time.Duration
}

type Resolver struct {
	synth tts.Synthesizer
	store Store
	cfg   Config
	group singleflight.Group
	obs   metrics.Observer
	log   *slog.Logger
}

// NewResolver returns a resolver; a nil synth yields a resolver that always
// reports no audio.
func NewResolver(synth tts.Synthesizer, store Store, cfg Config, obs metrics.Observer, log *slog.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	cfg.PublicURL = publicBase(cfg.PublicURL)
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Resolver{
		synth: synth,
		store: store,
		cfg:   cfg,
		obs:   obs,
		log:   logging.NewComponentLogger(log, "audio"),
	}
}

// publicBase trims trailing slashes and gives a bare host the https scheme
// Twilio webhooks are served under.
func publicBase(v string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "/")
	if v == "" || strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "http://") {
		return v
	}
	return "https://" + v
}

// Key is the content address of text: hex SHA-256 of its exact bytes.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// URL returns the public location of the asset for key.
func (r *Resolver) URL(key string) string {
	return r.cfg.PublicURL + PathPrefix + key + ".mp3"
}

// Enabled reports whether the resolver can produce audio at all.
func (r *Resolver) Enabled() bool {
	return r != nil && r.synth != nil && r.store != nil
}

// Resolve returns the asset URL for text, or "" when audio is unavailable.
// Failures are logged and never returned.
func (r *Resolver) Resolve(ctx context.Context, text string) string {
	if !r.Enabled() || strings.TrimSpace(text) == "" {
		return ""
	}
	key := Key(text)
	ok, err := r.store.Has(ctx, key)
	if err != nil {
		r.fail(key, errorsx.Wrap(err, errorsx.ReasonAudioStore))
		return ""
	}
	if ok {
		metrics.Record(r.obs, metrics.EventAudioCacheHit, 1, nil)
		return r.URL(key)
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		// Another flight may have finished between Has and Do.
		if ok, err := r.store.Has(ctx, key); err == nil && ok {
			return r.URL(key), nil
		}
		metrics.Record(r.obs, metrics.EventAudioCacheMiss, 1, nil)
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeout)
		defer cancel()
		start := time.Now()
		audio, err := r.synth.Synthesize(sctx, text, r.cfg.VoiceID, r.cfg.ModelID)
		if err != nil {
			return "", errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
		}
		if len(audio) == 0 {
			return "", errorsx.Wrap(errEmptyAudio, errorsx.ReasonTTSSynthesize)
		}
		if err := r.store.Put(sctx, key, audio); err != nil {
			return "", errorsx.Wrap(err, errorsx.ReasonAudioStore)
		}
		r.log.Debug("audio_synthesized",
			"key", key,
			"bytes", len(audio),
			"latency_ms", time.Since(start).Milliseconds())
		return r.URL(key), nil
	})
	if err != nil {
		r.fail(key, err)
		return ""
	}
	return v.(string)
}

func (r *Resolver) fail(key string, err error) {
	r.log.Warn("audio_resolve_failed",
		"key", key,
		"reason", string(errorsx.Reason(err)),
		"error", err)
	metrics.Record(r.obs, metrics.EventAudioFailed, 1, map[string]string{
		"reason": string(errorsx.Reason(err)),
	})
}

var errEmptyAudio = errors.New("audio: synthesizer returned no audio")
