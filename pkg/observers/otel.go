package observers

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/harunnryd/cleanline/pkg/metrics"
)

const meterName = "github.com/harunnryd/cleanline"

// labelKeys are the event tags exported as metric attributes. Anything else
// (phone numbers, trace ids) stays out of the time series.
var labelKeys = []string{"channel", "path", "intent", "provider", "component", "reason", "service_type", "method", "route", "status"}

var latencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// OTelObserver bridges metrics events into OpenTelemetry instruments.
type OTelObserver struct {
	events      metric.Int64Counter
	turnLatency metric.Float64Histogram
	httpLatency metric.Float64Histogram
	quoteAmount metric.Float64Histogram
}

func NewOTelObserver(mp metric.MeterProvider) (*OTelObserver, error) {
	m := mp.Meter(meterName)
	o := &OTelObserver{}
	var err error
	if o.events, err = m.Int64Counter("cleanline.events",
		metric.WithDescription("Conversation and provider events by name."),
	); err != nil {
		return nil, err
	}
	if o.turnLatency, err = m.Float64Histogram("cleanline.turn.duration",
		metric.WithDescription("Time from receipt to dispatch of a turn."),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if o.httpLatency, err = m.Float64Histogram("cleanline.http.request.duration",
		metric.WithDescription("HTTP request latency by route."),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if o.quoteAmount, err = m.Float64Histogram("cleanline.quote.amount",
		metric.WithDescription("Quoted totals extracted from replies."),
		metric.WithUnit("USD"),
	); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *OTelObserver) RecordEvent(ev metrics.MetricsEvent) {
	ctx := context.Background()
	attrs := attributesFor(ev)
	switch ev.Name {
	case metrics.EventTurnState:
		// State transitions are already summarized by turn_dispatched.
		return
	case metrics.EventTurnDispatched:
		o.turnLatency.Record(ctx, ev.Value, metric.WithAttributes(attrs...))
	case metrics.EventHTTPRequest:
		o.httpLatency.Record(ctx, ev.Value, metric.WithAttributes(attrs...))
		return
	case metrics.EventQuoteExtracted:
		o.quoteAmount.Record(ctx, ev.Value, metric.WithAttributes(attrs...))
	}
	o.events.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("name", ev.Name))...))
}

func attributesFor(ev metrics.MetricsEvent) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labelKeys))
	for _, k := range labelKeys {
		if v, ok := ev.Tags[k]; ok && v != "" {
			attrs = append(attrs, attribute.String(k, v))
		}
	}
	return attrs
}

// Telemetry owns the meter provider and the Prometheus scrape handler.
type Telemetry struct {
	Provider *sdkmetric.MeterProvider
	Observer *OTelObserver
	Handler  http.Handler
}

// InitTelemetry builds a meter provider exporting through Prometheus on a
// private registry.
func InitTelemetry(serviceName string) (*Telemetry, error) {
	if serviceName == "" {
		serviceName = "cleanline"
	}
	reg := prometheus.NewRegistry()
	exp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	)
	obs, err := NewOTelObserver(mp)
	if err != nil {
		return nil, errors.Join(err, mp.Shutdown(context.Background()))
	}
	return &Telemetry{
		Provider: mp,
		Observer: obs,
		Handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.Provider == nil {
		return nil
	}
	return t.Provider.Shutdown(ctx)
}
