package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/harunnryd/cleanline/pkg/transports"
)

// Message is one recorded outbound text.
type Message struct {
	To   string
	From string
	Body string
}

// Call is one recorded outbound dial.
type Call struct {
	To      string
	From    string
	Company string
}

// Transport is an in-memory transport for local testing and integration.
// It records outbound messages and calls without any network dependency.
type Transport struct {
	mu     sync.Mutex
	sent   []Message
	calls  []Call
	err    error
	seq    atomic.Int64
	closed atomic.Bool
	notify chan Message
}

func New() *Transport {
	return &Transport{notify: make(chan Message, 256)}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) Stop() error {
	if t.closed.CompareAndSwap(false, true) {
		t.mu.Lock()
		close(t.notify)
		t.mu.Unlock()
	}
	return nil
}

// FailWith makes every later Send and Dial return err.
func (t *Transport) FailWith(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

func (t *Transport) Send(ctx context.Context, to, from, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg := Message{To: to, From: from, Body: body}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return "", t.err
	}
	t.sent = append(t.sent, msg)
	if !t.closed.Load() {
		select {
		case t.notify <- msg:
		default:
		}
	}
	return fmt.Sprintf("SMmock%d", t.seq.Add(1)), nil
}

func (t *Transport) Dial(ctx context.Context, to, from, company string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return "", t.err
	}
	t.calls = append(t.calls, Call{To: to, From: from, Company: company})
	return fmt.Sprintf("CAmock%d", t.seq.Add(1)), nil
}

// Sent returns the messages recorded so far.
func (t *Transport) Sent() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.sent...)
}

// Calls returns the dials recorded so far.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// Notify delivers each sent message as it happens; it is closed on Stop.
func (t *Transport) Notify() <-chan Message { return t.notify }

var (
	_ transports.Transport      = (*Transport)(nil)
	_ transports.Messenger      = (*Transport)(nil)
	_ transports.OutboundDialer = (*Transport)(nil)
)
