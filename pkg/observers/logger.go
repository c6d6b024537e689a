package observers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/harunnryd/cleanline/pkg/metrics"
)

// alertEvents are logged at warn level as metrics_alert so log-based
// alerting can follow failed replies without a metrics backend.
var alertEvents = map[string]bool{
	metrics.EventSMSSendFailed: true,
	metrics.EventProviderError: true,
	metrics.EventTurnFailed:    true,
	metrics.EventBreakerOpen:   true,
	metrics.EventAudioFailed:   true,
}

// LoggerObserver writes metrics events to the log. Alert events go out at
// warn; everything else at debug, skipped when debug is off.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log.With("component", "metrics")}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	level, msg := slog.LevelDebug, "metrics_event"
	if alertEvents[ev.Name] {
		level, msg = slog.LevelWarn, "metrics_alert"
	}
	ctx := context.Background()
	if !o.log.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, 2+len(ev.Tags)+len(ev.Fields))
	attrs = append(attrs, slog.String("event", ev.Name), slog.Float64("value", ev.Value))
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.log.LogAttrs(ctx, level, msg, attrs...)
}

// MultiObserver fans one event out to several observers.
type MultiObserver struct {
	list []metrics.Observer
}

func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	kept := make([]metrics.Observer, 0, len(list))
	for _, obs := range list {
		if obs != nil {
			kept = append(kept, obs)
		}
	}
	return &MultiObserver{list: kept}
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range m.list {
		obs.RecordEvent(ev)
	}
}

// Flush flushes every member that buffers.
func (m *MultiObserver) Flush() error {
	var errs []error
	for _, obs := range m.list {
		if f, ok := obs.(metrics.Flusher); ok {
			errs = append(errs, f.Flush())
		}
	}
	return errors.Join(errs...)
}
