package completion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/cleanline/pkg/intent"
	"github.com/harunnryd/cleanline/pkg/llm"
	"github.com/harunnryd/cleanline/pkg/metrics"
	"github.com/harunnryd/cleanline/pkg/providers/mock"
	"github.com/harunnryd/cleanline/pkg/quote"
)

func newTestOrchestrator(adapter llm.LLMAdapter, obs metrics.Observer) *Orchestrator {
	return New(adapter, nil, Config{Timeout: 200 * time.Millisecond}, obs, nil)
}

func TestSMSPathUsesPromptWithoutSystem(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "  We can book you Friday!  "})
	o := newTestOrchestrator(adapter, nil)

	res := o.Complete(context.Background(), Request{Path: PathSMS, Text: "can I book friday?", Sender: "+15550001111"})
	if res.Text != "We can book you Friday!" || res.Fallback {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Intent != intent.Appointment {
		t.Fatalf("expected appointment intent, got %s", res.Intent)
	}
	if res.Quote != nil {
		t.Fatalf("sms path must not extract quotes")
	}
	calls := adapter.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one provider call, got %d", len(calls))
	}
	if calls[0].System != "" || calls[0].MaxTokens != 160 {
		t.Fatalf("unexpected sms input %+v", calls[0])
	}
	want := intent.BuildPrompt(intent.Appointment, "+15550001111", "can I book friday?")
	if calls[0].Messages[0].Content != want {
		t.Fatalf("expected built prompt as user message")
	}
}

func TestVoicePathUsesPersonaAndExtractsQuote(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "A deep clean is $149. Want me to book it?"})
	o := newTestOrchestrator(adapter, nil)

	res := o.Complete(context.Background(), Request{Path: PathVoice, Text: "how much is a deep clean"})
	if res.Quote == nil || res.Quote.TotalAmount != 149 || res.Quote.ServiceType != quote.Deep {
		t.Fatalf("expected deep quote, got %+v", res.Quote)
	}
	call := adapter.Calls()[0]
	if !strings.Contains(call.System, "$129") || !strings.Contains(call.System, "$149") {
		t.Fatalf("expected prices in persona")
	}
	if call.Messages[0].Content != "how much is a deep clean" || call.MaxTokens != 150 {
		t.Fatalf("unexpected voice input %+v", call)
	}
}

func TestZeroTemperatureReachesProvider(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "ok"})
	o := New(adapter, nil, Config{Timeout: time.Second, Temperature: llm.Temperature(0)}, nil, nil)

	_ = o.Complete(context.Background(), Request{Path: PathVoice, Text: "hi"})
	_ = o.Complete(context.Background(), Request{Path: PathSMS, Text: "hi", Sender: "+1555"})
	calls := adapter.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected two provider calls, got %d", len(calls))
	}
	for _, c := range calls {
		if c.Temperature == nil || *c.Temperature != 0 {
			t.Fatalf("configured zero temperature was replaced: %v", c.Temperature)
		}
	}
}

func TestFailureYieldsPathFallback(t *testing.T) {
	mem := metrics.NewMemoryObserver()
	o := newTestOrchestrator(mock.NewLLMAdapter(mock.LLMConfig{Err: errors.New("503")}), mem)

	sms := o.Complete(context.Background(), Request{Path: PathSMS, Text: "hi", Sender: "+1"})
	if sms.Text != smsFallback || !sms.Fallback {
		t.Fatalf("unexpected sms fallback %+v", sms)
	}
	voice := o.Complete(context.Background(), Request{Path: PathVoice, Text: "hi"})
	if voice.Text != voiceFallback || !voice.Fallback {
		t.Fatalf("unexpected voice fallback %+v", voice)
	}
	if mem.Count(metrics.EventProviderError) != 2 || mem.Count(metrics.EventFallbackUsed) != 2 {
		t.Fatalf("expected provider error metrics, got %+v", mem.Events)
	}
}

func TestEmptyOutputYieldsFallback(t *testing.T) {
	o := newTestOrchestrator(mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "   \n "}), nil)
	res := o.Complete(context.Background(), Request{Path: PathSMS, Text: "hi", Sender: "+1"})
	if res.Text != smsFallback {
		t.Fatalf("expected fallback for blank output, got %q", res.Text)
	}
}

func TestTimeoutYieldsFallback(t *testing.T) {
	o := newTestOrchestrator(mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "late", Delay: 5 * time.Second}), nil)
	start := time.Now()
	res := o.Complete(context.Background(), Request{Path: PathVoice, Text: "hello"})
	if res.Text != voiceFallback {
		t.Fatalf("expected fallback on timeout, got %q", res.Text)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not enforced")
	}
}

type panicAdapter struct{}

func (panicAdapter) Name() string { return "panic" }
func (panicAdapter) Generate(context.Context, llm.Context) (llm.Response, error) {
	panic("provider bug")
}

type stubbornAdapter struct{}

func (stubbornAdapter) Name() string { return "stubborn" }
func (stubbornAdapter) Generate(context.Context, llm.Context) (llm.Response, error) {
	time.Sleep(time.Second)
	return llm.Response{Text: "too late"}, nil
}

func TestPanicAndContextIgnoringProviders(t *testing.T) {
	if res := newTestOrchestrator(panicAdapter{}, nil).Complete(context.Background(), Request{Path: PathSMS, Text: "x", Sender: "+1"}); res.Text != smsFallback {
		t.Fatalf("expected fallback after panic, got %q", res.Text)
	}
	start := time.Now()
	if res := newTestOrchestrator(stubbornAdapter{}, nil).Complete(context.Background(), Request{Path: PathVoice, Text: "x"}); res.Text != voiceFallback {
		t.Fatalf("expected fallback for provider ignoring context, got %q", res.Text)
	}
	if time.Since(start) > 800*time.Millisecond {
		t.Fatalf("expected deadline to bound the call")
	}
	if res := newTestOrchestrator(nil, nil).Complete(context.Background(), Request{Path: PathVoice, Text: "x"}); !res.Fallback {
		t.Fatalf("expected fallback without provider")
	}
}

func TestVoiceReplyIsLimited(t *testing.T) {
	long := "One. Two! Three? Four. Five."
	o := newTestOrchestrator(mock.NewLLMAdapter(mock.LLMConfig{ResponseText: long}), nil)
	res := o.Complete(context.Background(), Request{Path: PathVoice, Text: "talk"})
	if res.Text != "One. Two! Three?" {
		t.Fatalf("unexpected limited text %q", res.Text)
	}
}
