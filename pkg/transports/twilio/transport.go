package twilio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	twilioclient "github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"

	"github.com/harunnryd/cleanline/pkg/audio"
	"github.com/harunnryd/cleanline/pkg/broadcast"
	"github.com/harunnryd/cleanline/pkg/errorsx"
	"github.com/harunnryd/cleanline/pkg/logging"
	"github.com/harunnryd/cleanline/pkg/metrics"
	"github.com/harunnryd/cleanline/pkg/redact"
	"github.com/harunnryd/cleanline/pkg/transports"
	"github.com/harunnryd/cleanline/pkg/turn"
)

type Config struct {
	ServerAddr         string   `mapstructure:"server_addr"`
	PublicURL          string   `mapstructure:"public_url"`
	AuthToken          string   `mapstructure:"auth_token"`
	AccountSID         string   `mapstructure:"account_sid"`
	DefaultFrom        string   `mapstructure:"default_from"`
	SMSPath            string   `mapstructure:"sms_path"`
	VoicePath          string   `mapstructure:"voice_path"`
	OutboundPath       string   `mapstructure:"outbound_path"`
	StatusCallbackPath string   `mapstructure:"status_callback_path"`
	RelayPath          string   `mapstructure:"relay_path"`
	EventsPath         string   `mapstructure:"events_path"`
	SendPath           string   `mapstructure:"send_path"`
	AllowAnyOrigin     bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
}

// WithDefaults fills unset addresses and paths; the outbound and status
// paths hang off VoicePath.
func (c Config) WithDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.SMSPath == "" {
		c.SMSPath = "/sms"
	}
	if c.VoicePath == "" {
		c.VoicePath = "/voice"
	}
	if c.OutboundPath == "" {
		c.OutboundPath = c.VoicePath + "/outbound"
	}
	if c.StatusCallbackPath == "" {
		c.StatusCallbackPath = c.VoicePath + "/status"
	}
	if c.RelayPath == "" {
		c.RelayPath = "/relay"
	}
	if c.EventsPath == "" {
		c.EventsPath = "/events"
	}
	if c.SendPath == "" {
		c.SendPath = "/send"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// TurnRouter is the part of turn.Router the transport drives.
type TurnRouter interface {
	AcceptSMS(ev turn.InboundEvent) error
	HandleVoice(ctx context.Context, ev turn.InboundEvent) (turn.OutboundAction, error)
	HandleRelay(ctx context.Context, connID string, raw []byte) []byte
	OutboundGreeting(company string) (string, error)
	FallbackVoice() string
}

// EventHub accepts observer sockets and receives manual-send records.
type EventHub interface {
	Register(conn broadcast.Conn) string
	Broadcast(rec broadcast.EventRecord)
}

type Deps struct {
	Router    TurnRouter
	Events    EventHub
	Messenger transports.Messenger
	Audio     http.Handler
	Metrics   http.Handler
	// Middleware wraps the whole mux, e.g. for request metrics.
	Middleware func(http.Handler) http.Handler
	Logger     *slog.Logger
	Observer   metrics.Observer
	RedactPII  bool
}

// Transport serves every Twilio webhook plus the relay and observer sockets
// on one HTTP listener.
type Transport struct {
	cfg      Config
	deps     Deps
	log      *slog.Logger
	server   *http.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session

	draining atomic.Bool
}

func New(cfg Config, deps Deps) *Transport {
	cfg = cfg.WithDefaults()
	t := &Transport{
		cfg:  cfg,
		deps: deps,
		log:  logging.NewComponentLogger(deps.Logger, "twilio"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		sessions: make(map[string]*session),
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "twilio" }

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{
		"sms_webhook_url":     t.publicURL(t.cfg.SMSPath),
		"voice_webhook_url":   t.publicURL(t.cfg.VoicePath),
		"status_callback_url": t.publicURL(t.cfg.StatusCallbackPath),
		"relay_url":           t.socketURL(t.cfg.RelayPath),
		"events_url":          t.socketURL(t.cfg.EventsPath),
	}
}

// Handler returns the routed handler without starting a listener.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.SMSPath, t.handleSMS)
	mux.HandleFunc(t.cfg.VoicePath, t.handleVoice)
	mux.HandleFunc(t.cfg.OutboundPath, t.handleOutbound)
	mux.HandleFunc(t.cfg.StatusCallbackPath, t.handleStatusCallback)
	mux.HandleFunc(t.cfg.RelayPath, t.handleRelay)
	mux.HandleFunc(t.cfg.EventsPath, t.handleEvents)
	mux.HandleFunc(t.cfg.SendPath, t.handleSend)
	if t.deps.Audio != nil {
		mux.Handle(audio.PathPrefix, t.deps.Audio)
	}
	if t.deps.Metrics != nil {
		mux.Handle("/metrics", t.deps.Metrics)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	var h http.Handler = mux
	if t.deps.Middleware != nil {
		h = t.deps.Middleware(h)
	}
	return t.drainGuard(h)
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if t.deps.Router == nil {
		return errors.New("twilio transport: router required")
	}
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           t.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Error("twilio_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = t.server.Shutdown(ctx)
		cancel()
	}
	t.mu.Lock()
	for _, sess := range t.sessions {
		_ = sess.close()
	}
	t.sessions = make(map[string]*session)
	t.mu.Unlock()
	return nil
}

func (t *Transport) drainGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.draining.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// verify checks the Twilio signature when an auth token is configured and
// writes 403 on mismatch.
func (t *Transport) verify(w http.ResponseWriter, r *http.Request, route string) bool {
	if t.cfg.AuthToken == "" || t.validateTwilioRequest(r) {
		return true
	}
	t.log.Warn("twilio_invalid_signature",
		"route", route,
		"reason_code", string(errorsx.ReasonTransportInvalidSignature))
	w.WriteHeader(http.StatusForbidden)
	return false
}

func (t *Transport) handleSMS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !t.verify(w, r, "sms") {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ev := turn.InboundEvent{
		Channel:    turn.ChannelSMS,
		Sender:     r.FormValue("From"),
		Endpoint:   r.FormValue("To"),
		Text:       r.FormValue("Body"),
		ReceivedAt: time.Now(),
	}
	if err := t.deps.Router.AcceptSMS(ev); err != nil {
		t.log.Warn("sms_rejected", "reason_code", string(errorsx.Reason(err)), "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t.writeXML(w, emptyMessages())
}

func (t *Transport) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !t.verify(w, r, "voice") {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ev := turn.InboundEvent{
		Channel:      turn.ChannelVoice,
		Sender:       r.FormValue("From"),
		Endpoint:     r.FormValue("To"),
		CallSID:      r.FormValue("CallSid"),
		Text:         r.FormValue("SpeechResult"),
		RecordingURL: r.FormValue("RecordingUrl"),
		ReceivedAt:   time.Now(),
	}
	action, err := t.deps.Router.HandleVoice(r.Context(), ev)
	if errorsx.IsValidation(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		t.log.Error("voice_turn_failed", "call_sid", ev.CallSID, "error", err)
		t.writeXML(w, t.deps.Router.FallbackVoice())
		return
	}
	t.writeXML(w, action.VoiceMarkup)
}

func (t *Transport) handleOutbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !t.verify(w, r, "voice_outbound") {
		return
	}
	company := r.URL.Query().Get("company")
	doc, err := t.deps.Router.OutboundGreeting(company)
	if err != nil {
		t.log.Error("outbound_markup_failed", "error", err)
		doc = t.deps.Router.FallbackVoice()
	}
	t.writeXML(w, doc)
}

func (t *Transport) handleStatusCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !t.verify(w, r, "voice_status") {
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	attrs := []any{"call_sid", r.FormValue("CallSid")}
	if status := r.FormValue("CallStatus"); status != "" {
		attrs = append(attrs, "call_status", status)
		if reason := normalizeCallEndReason(status); reason != "" {
			attrs = append(attrs, "end_reason", reason)
		}
	}
	if rs := r.FormValue("RecordingStatus"); rs != "" {
		attrs = append(attrs, "recording_status", rs, "recording_url", r.FormValue("RecordingUrl"))
	}
	t.log.Info("call_status", attrs...)
	w.WriteHeader(http.StatusOK)
}

type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (t *Transport) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" || strings.TrimSpace(req.Body) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to and body are required"})
		return
	}
	if t.deps.Messenger == nil || t.cfg.DefaultFrom == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sending is not configured"})
		return
	}
	receipt, err := t.deps.Messenger.Send(r.Context(), req.To, t.cfg.DefaultFrom, req.Body)
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonSMSSend)
		t.log.Error("manual_send_failed",
			"to", t.address(req.To),
			"reason_code", string(errorsx.Reason(err)),
			"error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	t.log.Info("manual_send", "to", t.address(req.To), "receipt", receipt)
	if t.deps.Events != nil {
		t.deps.Events.Broadcast(broadcast.Outbound(string(turn.ChannelSMS), t.cfg.DefaultFrom, req.To, req.Body))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (t *Transport) handleEvents(w http.ResponseWriter, r *http.Request) {
	if t.deps.Events == nil {
		http.NotFound(w, r)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	t.deps.Events.Register(conn)
}

// handleRelay reads frames until the peer disconnects. Frames are answered
// concurrently; replies share one writer.
func (t *Transport) handleRelay(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := uuid.NewString()
	sess := t.attach(id, conn)
	defer t.detach(id)
	t.log.Info("relay_connected", "conn_id", id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var inflight sync.WaitGroup
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		inflight.Add(1)
		go func(raw []byte) {
			defer inflight.Done()
			sess.enqueue(t.deps.Router.HandleRelay(ctx, id, raw))
		}(msg)
	}
	inflight.Wait()
	t.log.Info("relay_disconnected", "conn_id", id)
}

func (t *Transport) attach(id string, conn *websocket.Conn) *session {
	sess := &session{
		id:     id,
		conn:   conn,
		sendCh: make(chan []byte, relayQueueSize),
		log:    t.log,
		obs:    t.deps.Observer,
	}
	t.mu.Lock()
	t.sessions[id] = sess
	t.mu.Unlock()
	go sess.loop()
	return sess
}

func (t *Transport) detach(id string) {
	t.mu.Lock()
	sess := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()
	if sess != nil {
		_ = sess.close()
	}
}

func (t *Transport) writeXML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (t *Transport) address(v string) string {
	if t.deps.RedactPII {
		return redact.Address(v)
	}
	return v
}

const emptyResponse = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

func emptyMessages() string {
	doc, err := twiml.Messages(nil)
	if err != nil {
		return emptyResponse
	}
	return doc
}

func (t *Transport) publicURL(path string) string {
	if t.cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(t.cfg.PublicURL) + path
	}
	addr := t.cfg.ServerAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + path
}

func (t *Transport) socketURL(path string) string {
	if t.cfg.PublicURL != "" {
		return "wss://" + normalizePublicURL(t.cfg.PublicURL) + path
	}
	return "ws://" + strings.TrimPrefix(t.publicURL(path), "http://")
}

func (t *Transport) validateTwilioRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if t.cfg.AuthToken == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	validator := twilioclient.NewRequestValidator(t.cfg.AuthToken)
	return validator.ValidateBody(t.requestURL(r), body, signature)
}

func (t *Transport) requestURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(t.cfg.PublicURL) + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(t.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

func normalizeCallEndReason(raw string) string {
	r := strings.ToLower(strings.TrimSpace(raw))
	switch r {
	case "", "queued", "initiated", "ringing", "in-progress", "inprogress", "answered":
		return ""
	case "completed":
		return "completed"
	case "busy":
		return "busy"
	case "no-answer", "no_answer":
		return "no_answer"
	case "failed", "canceled", "cancelled":
		return "failed"
	default:
		return "unknown"
	}
}

func normalizePublicURL(v string) string {
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	return strings.TrimRight(v, "/")
}

const relayQueueSize = 256

// session serializes writes to one relay socket.
type session struct {
	id     string
	conn   *websocket.Conn
	sendCh chan []byte
	mu     sync.Mutex
	closed atomic.Bool
	log    *slog.Logger
	obs    metrics.Observer
}

// enqueue never blocks a turn; a full queue drops the reply.
func (s *session) enqueue(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.sendCh <- b:
	default:
		if s.log != nil {
			s.log.Warn("relay_reply_dropped", "conn_id", s.id, "queued", len(s.sendCh))
		}
		metrics.Record(s.obs, metrics.EventRelayReplyDropped, 1, nil)
	}
}

func (s *session) loop() {
	for msg := range s.sendCh {
		_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		_ = s.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *session) close() error {
	s.mu.Lock()
	if s.closed.CompareAndSwap(false, true) {
		close(s.sendCh)
	}
	s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

var (
	_ transports.Transport     = (*Transport)(nil)
	_ transports.ReadyReporter = (*Transport)(nil)
)
