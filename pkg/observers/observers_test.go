package observers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/harunnryd/cleanline/pkg/metrics"
	"github.com/harunnryd/cleanline/pkg/turn"
)

func newTestObserver(t *testing.T) (*OTelObserver, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	o, err := NewOTelObserver(mp)
	if err != nil {
		t.Fatalf("NewOTelObserver: %v", err)
	}
	return o, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestOTelObserverCountsEventsWithoutPII(t *testing.T) {
	o, reader := newTestObserver(t)
	metrics.Record(o, metrics.EventSMSSent, 1, map[string]string{"intent": "sales", "sender": "+15551234567"})
	metrics.Record(o, metrics.EventSMSSent, 1, map[string]string{"intent": "sales"})

	met := findMetric(t, reader, "cleanline.events")
	if met == nil {
		t.Fatalf("events counter not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("expected a single series, got %+v", met.Data)
	}
	if sum.DataPoints[0].Value != 2 {
		t.Fatalf("expected count 2, got %d", sum.DataPoints[0].Value)
	}
	for _, kv := range sum.DataPoints[0].Attributes.ToSlice() {
		if kv.Key == "sender" {
			t.Fatalf("sender must not become a label")
		}
	}
}

func TestOTelObserverTurnLatency(t *testing.T) {
	o, reader := newTestObserver(t)
	metrics.Record(o, metrics.EventTurnDispatched, 120, map[string]string{"channel": "voice"})
	met := findMetric(t, reader, "cleanline.turn.duration")
	if met == nil {
		t.Fatalf("turn histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("unexpected histogram %+v", met.Data)
	}
}

func TestHTTPMiddlewareRecordsRoute(t *testing.T) {
	mem := metrics.NewMemoryObserver()
	h := HTTPMiddleware(mem)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/audio/abc.mp3", nil))

	evs := mem.Named(metrics.EventHTTPRequest)
	if len(evs) != 1 {
		t.Fatalf("expected one http event, got %d", len(evs))
	}
	if evs[0].Tags["route"] != "/audio" || evs[0].Tags["status"] != "404" {
		t.Fatalf("unexpected tags %+v", evs[0].Tags)
	}
}

func TestInitTelemetryServesPrometheus(t *testing.T) {
	tel, err := InitTelemetry("cleanline-test")
	if err != nil {
		t.Fatalf("InitTelemetry: %v", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()
	metrics.Record(tel.Observer, metrics.EventCompletion, 1, map[string]string{"path": "sms"})

	srv := httptest.NewServer(tel.Handler)
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "cleanline_events") {
		t.Fatalf("expected cleanline_events in scrape output")
	}
}

func TestLatencyObserverLogsOnDispatch(t *testing.T) {
	var buf bytes.Buffer
	lo := NewLatencyObserver(slog.New(slog.NewTextHandler(&buf, nil)))
	now := time.Now()
	lo.OnStateChange(turn.StateChange{TurnID: "t1", Channel: turn.ChannelSMS, ToState: turn.StateClassifying, Timestamp: now})
	lo.OnStateChange(turn.StateChange{TurnID: "t1", Channel: turn.ChannelSMS, ToState: turn.StateCompleting, Timestamp: now.Add(2 * time.Millisecond)})
	if lo.Pending() != 1 {
		t.Fatalf("expected one pending turn")
	}
	lo.OnStateChange(turn.StateChange{TurnID: "t1", Channel: turn.ChannelSMS, ToState: turn.StateDispatched, Timestamp: now.Add(50 * time.Millisecond), Elapsed: 50 * time.Millisecond, Reason: "sent"})
	if lo.Pending() != 0 {
		t.Fatalf("dispatched turn must be forgotten")
	}
	out := buf.String()
	for _, want := range []string{"trace_id=t1", "classify_ms=2", "completion_ms=48", "synthesis_ms=-1", "total_ms=50"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
}

func TestMultiObserverFansOut(t *testing.T) {
	a, b := metrics.NewMemoryObserver(), metrics.NewMemoryObserver()
	m := NewMultiObserver(a, nil, b)
	metrics.Record(m, metrics.EventBroadcast, 1, nil)
	if a.Count(metrics.EventBroadcast) != 1 || b.Count(metrics.EventBroadcast) != 1 {
		t.Fatalf("expected both observers to see the event")
	}
}

func TestLoggerObserverAlertsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	o := NewLoggerObserver(log)

	metrics.Record(o, metrics.EventAudioCacheHit, 1, nil)
	if buf.Len() != 0 {
		t.Fatalf("debug events must be skipped at info level: %s", buf.String())
	}
	metrics.Record(o, metrics.EventSMSSendFailed, 1, map[string]string{"channel": "sms"})
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "msg=metrics_alert") || !strings.Contains(out, "event=sms_send_failed") {
		t.Fatalf("unexpected alert line: %s", out)
	}
}

type flushCounter struct {
	metrics.NoopObserver
	flushed int
}

func (f *flushCounter) Flush() error {
	f.flushed++
	return nil
}

func TestMultiObserverFlush(t *testing.T) {
	fc := &flushCounter{}
	m := NewMultiObserver(metrics.NewMemoryObserver(), fc)
	if err := m.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if fc.flushed != 1 {
		t.Fatalf("flushed = %d", fc.flushed)
	}
}
