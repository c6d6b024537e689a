// Package completion turns an inbound utterance into reply text. It never
// fails: provider errors, timeouts and empty output all resolve to a fixed
// fallback for the path.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/cleanline/pkg/errorsx"
	"github.com/harunnryd/cleanline/pkg/intent"
	"github.com/harunnryd/cleanline/pkg/llm"
	"github.com/harunnryd/cleanline/pkg/logging"
	"github.com/harunnryd/cleanline/pkg/metrics"
	"github.com/harunnryd/cleanline/pkg/quote"
	"github.com/harunnryd/cleanline/pkg/redact"
)

// Path selects prompt assembly and fallback wording.
type Path string

const (
	PathSMS   Path = "sms"
	PathVoice Path = "voice"
)

type Config struct {
	Business          string
	Timeout           time.Duration
	SMSMaxTokens      int
	VoiceMaxTokens    int
	// Temperature is passed through as is; nil leaves the provider default.
	Temperature       *float64
	VoiceMaxSentences int
	VoiceMaxChars     int
}

func (c Config) withDefaults() Config {
	if c.Business == "" {
		c.Business = "HyperClean"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.SMSMaxTokens <= 0 {
		c.SMSMaxTokens = 160
	}
	if c.VoiceMaxTokens <= 0 {
		c.VoiceMaxTokens = 150
	}
	return c
}

type Request struct {
	Path   Path
	Text   string
	Sender string
	Region string
	// Intent, when valid, skips classification on the SMS path.
	Intent intent.Intent
}

type Result struct {
	Text     string
	Quote    *quote.Quote
	Intent   intent.Intent
	Fallback bool
}

type Orchestrator struct {
	adapter llm.LLMAdapter
	prices  quote.PriceTable
	quotes  *quote.Extractor
	limiter Limiter
	cfg     Config
	obs     metrics.Observer
	log     *slog.Logger
}

func New(adapter llm.LLMAdapter, prices quote.PriceTable, cfg Config, obs metrics.Observer, log *slog.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	if len(prices) == 0 {
		prices = quote.DefaultPrices()
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Orchestrator{
		adapter: adapter,
		prices:  prices,
		quotes:  quote.NewExtractor(prices),
		limiter: NewLimiter(cfg.VoiceMaxChars, cfg.VoiceMaxSentences),
		cfg:     cfg,
		obs:     obs,
		log:     logging.NewComponentLogger(log, "completion"),
	}
}

// Complete produces reply text for one turn. Result.Text is never empty.
func (o *Orchestrator) Complete(ctx context.Context, req Request) Result {
	if req.Path == PathSMS {
		return o.completeSMS(ctx, req)
	}
	return o.completeVoice(ctx, req)
}

func (o *Orchestrator) completeSMS(ctx context.Context, req Request) Result {
	in := req.Intent
	if !in.Valid() {
		in = intent.Classify(req.Text)
	}
	prompt := intent.BuildPrompt(in, req.Sender, req.Text)
	text, err := o.generate(ctx, llm.UserPrompt("", prompt, o.cfg.SMSMaxTokens, o.cfg.Temperature))
	res := Result{Intent: in}
	res.Text, res.Fallback = o.settle(req, text, err)
	if !res.Fallback {
		res.Text = truncateChars(res.Text, smsMaxChars)
	}
	o.recordCompletion(req, res)
	return res
}

func (o *Orchestrator) completeVoice(ctx context.Context, req Request) Result {
	system := VoicePersona(o.cfg.Business, o.prices, req.Region)
	text, err := o.generate(ctx, llm.UserPrompt(system, req.Text, o.cfg.VoiceMaxTokens, o.cfg.Temperature))
	res := Result{Intent: intent.General}
	res.Text, res.Fallback = o.settle(req, text, err)
	if !res.Fallback {
		if limited, cut := o.limiter.Apply(res.Text); cut {
			o.log.Debug("reply_shortened", "chars_before", len(res.Text), "chars_after", len(limited))
			res.Text = limited
		}
	}
	res.Quote = o.quotes.Extract(res.Text, req.Region)
	if res.Quote != nil {
		metrics.Record(o.obs, metrics.EventQuoteExtracted, float64(res.Quote.TotalAmount), map[string]string{
			"service_type": string(res.Quote.ServiceType),
		})
	}
	o.recordCompletion(req, res)
	return res
}

// settle maps a provider outcome to reply text, substituting the fallback on
// error or empty output.
func (o *Orchestrator) settle(req Request, text string, err error) (string, bool) {
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
		o.log.Warn("completion_failed",
			"path", string(req.Path),
			"sender", redact.Address(req.Sender),
			"reason", string(errorsx.Reason(err)),
			"error", err)
		metrics.Record(o.obs, metrics.EventProviderError, 1, map[string]string{
			"component": "llm",
			"provider":  o.providerName(),
			"reason":    string(errorsx.Reason(err)),
		})
		return Fallback(req.Path), true
	}
	text = strings.TrimSpace(text)
	if text == "" {
		o.log.Warn("completion_empty", "path", string(req.Path))
		return Fallback(req.Path), true
	}
	return text, false
}

type generation struct {
	text string
	err  error
}

// generate runs one provider call bounded by the configured timeout. The
// call runs in its own goroutine so a provider that ignores its context still
// cannot hold the turn past the deadline.
func (o *Orchestrator) generate(ctx context.Context, input llm.Context) (string, error) {
	if o.adapter == nil {
		return "", errors.New("no completion provider configured")
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generation{err: fmt.Errorf("completion provider panic: %v", r)}
			}
		}()
		resp, err := o.adapter.Generate(ctx, input)
		done <- generation{text: resp.Text, err: err}
	}()

	select {
	case g := <-done:
		return g.text, g.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (o *Orchestrator) recordCompletion(req Request, res Result) {
	tags := map[string]string{
		"path":     string(req.Path),
		"intent":   string(res.Intent),
		"provider": o.providerName(),
	}
	metrics.Record(o.obs, metrics.EventCompletion, 1, tags)
	if res.Fallback {
		metrics.Record(o.obs, metrics.EventFallbackUsed, 1, tags)
	}
}

func (o *Orchestrator) providerName() string {
	if o.adapter == nil {
		return "none"
	}
	return o.adapter.Name()
}
