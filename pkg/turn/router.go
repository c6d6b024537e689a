package turn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/cleanline/pkg/adapters/stt"
	"github.com/harunnryd/cleanline/pkg/broadcast"
	"github.com/harunnryd/cleanline/pkg/completion"
	"github.com/harunnryd/cleanline/pkg/errorsx"
	"github.com/harunnryd/cleanline/pkg/intent"
	"github.com/harunnryd/cleanline/pkg/logging"
	"github.com/harunnryd/cleanline/pkg/metrics"
	"github.com/harunnryd/cleanline/pkg/redact"
	"github.com/harunnryd/cleanline/pkg/transports"
)

// Completer produces reply text for one utterance and never fails.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) completion.Result
}

// AudioResolver maps reply text to a playable URL, or "" when none.
type AudioResolver interface {
	Resolve(ctx context.Context, text string) string
	Enabled() bool
}

// Broadcaster receives conversation events. It must not block.
type Broadcaster interface {
	Broadcast(rec broadcast.EventRecord)
}

type Deps struct {
	Completer   Completer
	Audio       AudioResolver
	Messenger   transports.Messenger
	Transcriber stt.Transcriber
	Broadcaster Broadcaster
	Observer    metrics.Observer
	Logger      *slog.Logger
	Listeners   []StateListener
}

type Config struct {
	Business          string
	DefaultRegion     string
	Greeting          string
	HandoffNumber     string
	VoiceActionURL    string
	StatusCallbackURL string
	SpeechLanguage    string
	SendTimeout       time.Duration
	TranscribeTimeout time.Duration
	RedactPII         bool
}

func (c Config) withDefaults() Config {
	if c.Business == "" {
		c.Business = "HyperClean"
	}
	if c.DefaultRegion == "" {
		c.DefaultRegion = "default"
	}
	if c.Greeting == "" {
		c.Greeting = "Thanks for calling " + c.Business + ". How can I help you today?"
	}
	if c.VoiceActionURL == "" {
		c.VoiceActionURL = "/voice"
	}
	if c.StatusCallbackURL == "" {
		c.StatusCallbackURL = "/voice/status"
	}
	if c.SpeechLanguage == "" {
		c.SpeechLanguage = "en-US"
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 15 * time.Second
	}
	return c
}

// Router drives one turn per inbound event and produces the channel's
// outbound action.
type Router struct {
	deps    Deps
	cfg     Config
	log     *slog.Logger
	obs     metrics.Observer
	pending sync.WaitGroup
}

func NewRouter(deps Deps, cfg Config) *Router {
	obs := deps.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	r := &Router{
		cfg: cfg.withDefaults(),
		log: logging.NewComponentLogger(deps.Logger, "turn"),
		obs: obs,
	}
	deps.Listeners = append([]StateListener{metricsListener{obs: obs}}, deps.Listeners...)
	r.deps = deps
	return r
}

// AcceptSMS validates ev and starts the turn in the background. A nil
// return means the transport can be acknowledged; the reply is sent later.
func (r *Router) AcceptSMS(ev InboundEvent) error {
	ev.Channel = ChannelSMS
	if err := ev.Validate(); err != nil {
		return err
	}
	ev = r.stamp(ev)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		r.runSMS(ev)
	}()
	return nil
}

// Wait blocks until every SMS turn accepted so far has finished.
func (r *Router) Wait() {
	r.pending.Wait()
}

func (r *Router) runSMS(ev InboundEvent) {
	sm := r.newTurn(ev)
	log := r.turnLogger(ev)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("sms_turn_panic", "panic", fmt.Sprint(rec))
			metrics.Record(r.obs, metrics.EventTurnFailed, 1, map[string]string{"channel": string(ChannelSMS)})
			sm.Dispatch("panic")
		}
	}()

	r.broadcast(broadcast.Inbound(string(ChannelSMS), ev.Sender, ev.Endpoint, ev.Text))

	_ = sm.Transition(StateClassifying, "")
	in := intent.Classify(ev.Text)
	log.Debug("sms_classified", "intent", string(in))

	_ = sm.Transition(StateCompleting, string(in))
	ctx := context.Background()
	res := r.deps.Completer.Complete(ctx, completion.Request{
		Path:   completion.PathSMS,
		Text:   ev.Text,
		Sender: ev.Sender,
		Region: r.region(ev),
		Intent: in,
	})

	action := SMSAction{To: ev.Sender, From: ev.Endpoint, Body: res.Text}
	receipt, err := r.send(ctx, action)
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonSMSSend)
		log.Error("sms_send_failed",
			"reason", string(errorsx.Reason(err)),
			"error", err)
		metrics.Record(r.obs, metrics.EventSMSSendFailed, 1, nil)
		sm.Dispatch("send_failed")
		return
	}
	log.Info("sms_sent", "receipt", receipt, "fallback", res.Fallback, "chars", len(res.Text))
	metrics.Record(r.obs, metrics.EventSMSSent, 1, map[string]string{"intent": string(in)})
	r.broadcast(broadcast.Outbound(string(ChannelSMS), action.From, action.To, action.Body))
	sm.Dispatch("sent")
}

func (r *Router) send(ctx context.Context, a SMSAction) (string, error) {
	if r.deps.Messenger == nil {
		return "", errorsx.Wrap(fmt.Errorf("no messenger configured"), errorsx.ReasonSMSSend)
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
	defer cancel()
	return r.deps.Messenger.Send(ctx, a.To, a.From, a.Body)
}

// HandleVoice answers one voice webhook with a markup document. Only a
// missing CallSid is reported as an error; every other failure yields the
// fallback document.
func (r *Router) HandleVoice(ctx context.Context, ev InboundEvent) (action OutboundAction, err error) {
	ev.Channel = ChannelVoice
	if err := ev.Validate(); err != nil {
		return OutboundAction{}, err
	}
	ev = r.stamp(ev)
	sm := r.newTurn(ev)
	log := r.turnLogger(ev)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("voice_turn_panic", "panic", fmt.Sprint(rec))
			metrics.Record(r.obs, metrics.EventTurnFailed, 1, map[string]string{"channel": string(ChannelVoice)})
			action = OutboundAction{Channel: ChannelVoice, VoiceMarkup: fallbackDocument(r.cfg.HandoffNumber)}
			err = nil
			sm.Dispatch("panic")
		}
	}()

	text := strings.TrimSpace(ev.Text)
	if text == "" && ev.RecordingURL != "" {
		text = r.transcribe(ctx, ev.RecordingURL, log)
	}
	if text == "" {
		markup, gerr := greetingDocument(r.cfg.Greeting, r.cfg.VoiceActionURL, r.cfg.SpeechLanguage)
		if gerr != nil {
			log.Error("voice_markup_failed", "error", gerr)
			markup = fallbackDocument(r.cfg.HandoffNumber)
		}
		sm.Dispatch("no_speech")
		return OutboundAction{Channel: ChannelVoice, VoiceMarkup: markup}, nil
	}

	r.broadcast(broadcast.Inbound(string(ChannelVoice), ev.Sender, ev.Endpoint, text))
	reply, audioURL := r.completeSpoken(ctx, sm, ev, text)

	markup, merr := replyDocument(reply.Text, audioURL, r.cfg.VoiceActionURL, r.cfg.SpeechLanguage)
	if merr != nil {
		log.Error("voice_markup_failed", "error", merr)
		markup = fallbackDocument(r.cfg.HandoffNumber)
	}
	r.broadcast(broadcast.Outbound(string(ChannelVoice), ev.Endpoint, ev.Sender, reply.Text))
	sm.Dispatch("replied")
	return OutboundAction{Channel: ChannelVoice, VoiceMarkup: markup}, nil
}

// OutboundGreeting is the document an outbound call opens with.
func (r *Router) OutboundGreeting(company string) (string, error) {
	return outboundDocument(company, r.cfg)
}

// FallbackVoice is the document served when a voice turn cannot run at all.
func (r *Router) FallbackVoice() string {
	return fallbackDocument(r.cfg.HandoffNumber)
}

func (r *Router) transcribe(ctx context.Context, url string, log *slog.Logger) string {
	if r.deps.Transcriber == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.TranscribeTimeout)
	defer cancel()
	text, err := r.deps.Transcriber.TranscribeURL(ctx, url)
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonSTTTranscribe)
		log.Warn("recording_transcribe_failed",
			"provider", r.deps.Transcriber.Name(),
			"reason", string(errorsx.Reason(err)),
			"error", err)
		metrics.Record(r.obs, metrics.EventProviderError, 1, map[string]string{
			"component": "stt",
			"provider":  r.deps.Transcriber.Name(),
			"reason":    string(errorsx.Reason(err)),
		})
		return ""
	}
	return strings.TrimSpace(text)
}

// completeSpoken runs the shared voice/relay steps: completion, then audio.
func (r *Router) completeSpoken(ctx context.Context, sm *stateMachine, ev InboundEvent, text string) (completion.Result, string) {
	_ = sm.Transition(StateCompleting, "")
	res := r.deps.Completer.Complete(ctx, completion.Request{
		Path:   completion.PathVoice,
		Text:   text,
		Sender: ev.Sender,
		Region: r.region(ev),
	})
	if r.deps.Audio == nil || !r.deps.Audio.Enabled() {
		return res, ""
	}
	_ = sm.Transition(StateSynthesizing, "")
	return res, r.deps.Audio.Resolve(ctx, res.Text)
}

func (r *Router) region(ev InboundEvent) string {
	if reg := strings.ToLower(strings.TrimSpace(ev.Region())); reg != "" {
		return reg
	}
	return r.cfg.DefaultRegion
}

func (r *Router) stamp(ev InboundEvent) InboundEvent {
	if ev.TraceID == "" {
		ev.TraceID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	return ev
}

func (r *Router) newTurn(ev InboundEvent) *stateMachine {
	return newStateMachine(ev.TraceID, ev.Channel, r.deps.Listeners...)
}

func (r *Router) turnLogger(ev InboundEvent) *slog.Logger {
	sender := ev.Sender
	if r.cfg.RedactPII {
		sender = redact.Address(sender)
	}
	return r.log.With("trace_id", ev.TraceID, "channel", string(ev.Channel), "sender", sender)
}

func (r *Router) broadcast(rec broadcast.EventRecord) {
	if r.deps.Broadcaster == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.Warn("broadcast_panic", "panic", fmt.Sprint(p))
		}
	}()
	r.deps.Broadcaster.Broadcast(rec)
}

// metricsListener turns state changes into metrics events.
type metricsListener struct {
	obs metrics.Observer
}

func (l metricsListener) OnStateChange(ev StateChange) {
	tags := map[string]string{
		"channel": string(ev.Channel),
		"from":    ev.FromState.String(),
		"to":      ev.ToState.String(),
	}
	metrics.Record(l.obs, metrics.EventTurnState, float64(ev.Elapsed.Milliseconds()), tags)
	if ev.ToState == StateDispatched {
		metrics.Record(l.obs, metrics.EventTurnDispatched, float64(ev.Elapsed.Milliseconds()), map[string]string{
			"channel": string(ev.Channel),
			"reason":  ev.Reason,
		})
	}
}
