package cleanline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harunnryd/cleanline/pkg/audio"
	"github.com/harunnryd/cleanline/pkg/broadcast"
	"github.com/harunnryd/cleanline/pkg/completion"
	"github.com/harunnryd/cleanline/pkg/configutil"
	"github.com/harunnryd/cleanline/pkg/llm"
	"github.com/harunnryd/cleanline/pkg/logging"
	"github.com/harunnryd/cleanline/pkg/metrics"
	"github.com/harunnryd/cleanline/pkg/observers"
	"github.com/harunnryd/cleanline/pkg/redact"
	"github.com/harunnryd/cleanline/pkg/resilience"
	"github.com/harunnryd/cleanline/pkg/runner"
	"github.com/harunnryd/cleanline/pkg/transports"
	mocktransport "github.com/harunnryd/cleanline/pkg/transports/mock"
	"github.com/harunnryd/cleanline/pkg/transports/twilio"
	"github.com/harunnryd/cleanline/pkg/turn"
)

type Engine struct {
	cfg       Config
	log       *slog.Logger
	providers *ProviderRegistry

	transport *twilio.Transport
	router    *turn.Router
	hub       *broadcast.Hub
	messenger transports.Messenger
	dialer    transports.OutboundDialer

	asyncObs  *metrics.AsyncObserver
	events    *metrics.JSONLObserver
	telemetry *observers.Telemetry
	pool      *pgxpool.Pool

	runner *runner.LifecycleRunner
	ctx    context.Context
	cancel context.CancelFunc
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Logger overrides the logger built from log_level and log_format.
	Logger *slog.Logger
}

var twilioSchema = configutil.Schema{
	Optional: []string{
		"server_addr", "public_url", "auth_token", "account_sid", "default_from",
		"sms_path", "voice_path", "outbound_path", "status_callback_path",
		"relay_path", "events_path", "send_path", "allow_any_origin", "allowed_origins",
	},
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	log.Info("cleanline_init",
		"environment", cfg.Environment,
		"business", cfg.Business.Name,
		"llm_provider", cfg.Vendors.LLM.Provider,
		"stt_provider", cfg.Vendors.STT.Provider,
		"tts_provider", cfg.Vendors.TTS.Provider,
		"transport", cfg.Transports.Provider,
		"audio_store", cfg.Audio.Store,
	)

	providers := opts.Providers
	if providers == nil {
		providers = DefaultProviderRegistry()
	}
	e := &Engine{cfg: cfg, log: log, providers: providers}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	ok := false
	defer func() {
		if !ok {
			e.release()
		}
	}()

	obs, err := e.buildObservers()
	if err != nil {
		return nil, err
	}

	adapter, err := providers.BuildLLM(cfg.Vendors.LLM.Provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("build llm: %w", err)
	}
	adapter = wrapLLM(adapter, cfg.Completion, obs)

	synth, err := providers.BuildTTS(cfg.Vendors.TTS.Provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("build tts: %w", err)
	}
	transcriber, err := providers.BuildSTT(cfg.Vendors.STT.Provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("build stt: %w", err)
	}

	var tw twilio.Config
	if err := configutil.Load("transports.settings", cfg.Transports.Settings, twilioSchema, &tw); err != nil {
		return nil, err
	}
	tw = tw.WithDefaults()

	store, err := e.buildStore()
	if err != nil {
		return nil, err
	}
	voiceID, modelID := voiceSettings(cfg)
	resolver := audio.NewResolver(synth, store, audio.Config{
		PublicURL: tw.PublicURL,
		VoiceID:   voiceID,
		ModelID:   modelID,
		Timeout:   configutil.Millis(cfg.Audio.TimeoutMS, 8*time.Second),
	}, obs, log)

	var sinks []broadcast.Sink
	if len(cfg.Broadcast.Kafka.Brokers) > 0 {
		sinks = append(sinks, broadcast.NewKafkaSink(cfg.Broadcast.Kafka.Brokers, cfg.Broadcast.Kafka.Topic, log))
	}
	e.hub = broadcast.NewHub(cfg.Broadcast.ObserverBuffer, obs, log, sinks...)

	orch := completion.New(adapter, cfg.Prices(), completion.Config{
		Business:          cfg.Business.Name,
		Timeout:           configutil.Millis(cfg.Completion.TimeoutMS, 10*time.Second),
		SMSMaxTokens:      cfg.Completion.SMSMaxTokens,
		VoiceMaxTokens:    cfg.Completion.VoiceMaxTokens,
		Temperature:       llm.Temperature(cfg.Completion.Temperature),
		VoiceMaxSentences: cfg.Completion.VoiceMaxSentences,
		VoiceMaxChars:     cfg.Completion.VoiceMaxChars,
	}, obs, log)

	switch normalizeProvider(cfg.Transports.Provider) {
	case "twilio":
		e.messenger = twilio.NewMessenger(tw)
		e.dialer = twilio.NewDialer(tw)
	case "mock":
		mt := mocktransport.New()
		e.messenger = mt
		e.dialer = mt
	default:
		return nil, fmt.Errorf("transport provider not registered: %s", cfg.Transports.Provider)
	}

	latency := observers.NewLatencyObserver(log)
	e.router = turn.NewRouter(turn.Deps{
		Completer:   orch,
		Audio:       resolver,
		Messenger:   e.messenger,
		Transcriber: transcriber,
		Broadcaster: e.hub,
		Observer:    obs,
		Logger:      log,
		Listeners:   []turn.StateListener{latency},
	}, turn.Config{
		Business:          cfg.Business.Name,
		DefaultRegion:     cfg.Business.DefaultRegion,
		Greeting:          cfg.Voice.Greeting,
		HandoffNumber:     cfg.Business.HandoffNumber,
		VoiceActionURL:    tw.VoicePath,
		StatusCallbackURL: tw.StatusCallbackPath,
		SpeechLanguage:    cfg.Voice.SpeechLanguage,
		SendTimeout:       configutil.Millis(cfg.SMS.SendTimeoutMS, 10*time.Second),
		TranscribeTimeout: configutil.Millis(cfg.Voice.TranscribeTimeoutMS, 15*time.Second),
		RedactPII:         cfg.Privacy.RedactPII,
	})

	deps := twilio.Deps{
		Router:     e.router,
		Events:     e.hub,
		Messenger:  e.messenger,
		Audio:      audio.NewHandler(store, log),
		Middleware: observers.HTTPMiddleware(obs),
		Logger:     log,
		Observer:   obs,
		RedactPII:  cfg.Privacy.RedactPII,
	}
	if e.telemetry != nil {
		deps.Metrics = e.telemetry.Handler
	}
	e.transport = twilio.New(tw, deps)

	hooks := runner.Hooks{
		OnStart: func() {
			fields := []any{"message", "CleanLine Ready"}
			for k, v := range e.transport.ReadyFields() {
				fields = append(fields, k, v)
			}
			log.Info("engine_ready", fields...)
		},
		OnStop: func() {
			e.release()
			log.Info("shutdown", "goroutines", runtime.NumGoroutine(), "pending_turns", latency.Pending())
		},
	}
	e.runner = runner.NewLifecycleRunner(runner.DrainerFunc(e.drain), hooks, 30*time.Second)

	ok = true
	return e, nil
}

// buildObservers assembles log, prometheus and event-file observers behind
// one async queue so hot paths never block on export.
func (e *Engine) buildObservers() (metrics.Observer, error) {
	cfg := e.cfg
	list := []metrics.Observer{observers.NewLoggerObserver(e.log)}
	if cfg.Observability.Metrics {
		tel, err := observers.InitTelemetry(cfg.Observability.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		e.telemetry = tel
		list = append(list, tel.Observer)
	}
	if path := strings.TrimSpace(cfg.Observability.EventsFile); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open events file: %w", err)
		}
		e.events = metrics.NewJSONLObserver(f)
		rate := cfg.Observability.EventsSampleRate
		if rate == 0 {
			rate = 1
		}
		list = append(list, metrics.NewSamplingObserver(e.events, rate,
			metrics.EventSMSSendFailed, metrics.EventProviderError, metrics.EventTurnFailed))
	}
	e.asyncObs = metrics.NewAsyncObserver(observers.NewMultiObserver(list...), 2048)
	return e.asyncObs, nil
}

func (e *Engine) buildStore() (audio.Store, error) {
	switch e.cfg.Audio.Store {
	case "postgres":
		pool, err := pgxpool.New(e.ctx, e.cfg.Audio.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("audio postgres: %w", err)
		}
		e.pool = pool
		store := audio.NewPostgresStore(pool)
		ctx, cancel := context.WithTimeout(e.ctx, 30*time.Second)
		defer cancel()
		if err := resilience.NewRetryPolicy(3, 500*time.Millisecond).Do(ctx, store.Migrate); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return audio.NewFileStore(e.cfg.Audio.Dir)
	}
}

func wrapLLM(adapter llm.LLMAdapter, cfg CompletionConfig, obs metrics.Observer) llm.LLMAdapter {
	if cfg.RetryAttempts > 1 {
		ra := llm.NewRetryAdapter(adapter, llm.RetryConfig{MaxAttempts: cfg.RetryAttempts})
		ra.SetObserver(obs)
		adapter = ra
	}
	if cfg.CircuitThreshold > 0 {
		breaker := resilience.NewCircuitBreaker(cfg.CircuitThreshold, configutil.Millis(cfg.CircuitCooldownMS, 30*time.Second))
		cb := llm.NewCircuitBreakerAdapter(adapter, breaker)
		cb.SetObserver(obs)
		adapter = cb
	}
	return adapter
}

// drain stops intake first, then lets in-flight SMS turns finish before
// observers go away.
func (e *Engine) drain() error {
	var errs []error
	if e.transport != nil {
		errs = append(errs, e.transport.Stop())
	}
	if e.router != nil {
		done := make(chan struct{})
		go func() {
			e.router.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(20 * time.Second):
			errs = append(errs, errors.New("pending turns did not finish"))
		}
	}
	return errors.Join(errs...)
}

// release closes owned resources. Safe to call more than once.
func (e *Engine) release() {
	if e.hub != nil {
		_ = e.hub.Close()
		e.hub = nil
	}
	if e.asyncObs != nil {
		e.asyncObs.Close()
		e.asyncObs = nil
	}
	if e.events != nil {
		_ = e.events.Close()
		e.events = nil
	}
	if e.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = e.telemetry.Shutdown(ctx)
		cancel()
		e.telemetry = nil
	}
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.transport.Start(ctx); err != nil {
		return err
	}
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.runner.Stop()
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) ProviderRegistry() *ProviderRegistry { return e.providers }

func (e *Engine) Transport() *twilio.Transport { return e.transport }

func (e *Engine) Router() *turn.Router { return e.router }

// Dialer places outbound calls with the configured transport provider.
func (e *Engine) Dialer() transports.OutboundDialer { return e.dialer }
