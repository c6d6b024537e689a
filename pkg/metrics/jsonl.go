package metrics

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// JSONLObserver appends one JSON object per event to a writer, typically a
// file configured as observability.events_file.
type JSONLObserver struct {
	logger *slog.Logger
	closer io.Closer
	once   sync.Once
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		return &JSONLObserver{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	}
	o := &JSONLObserver{logger: slog.New(slog.NewJSONHandler(w, nil))}
	if c, ok := w.(io.Closer); ok {
		o.closer = c
	}
	return o
}

func (o *JSONLObserver) RecordEvent(ev MetricsEvent) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("event_time", ev.Time),
		slog.Float64("value", ev.Value),
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.logger.LogAttrs(context.Background(), slog.LevelInfo, "metrics", attrs...)
}

// Close closes the underlying writer when it is closable.
func (o *JSONLObserver) Close() error {
	var err error
	o.once.Do(func() {
		if o.closer != nil {
			err = o.closer.Close()
		}
	})
	return err
}
