package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/multierr"
)

type MetricsExporterType string

const (
	NoopMetricsExporter       MetricsExporterType = "none"
	ConsoleMetricsExporter    MetricsExporterType = "console"
	PrometheusMetricsExporter MetricsExporterType = "prometheus"
)

var ErrUnknownMetricsExporter = errors.New("[observability] unknown metrics exporter")

// MetricsExporter owns a meter provider and the way to reach its metrics.
// Handler is nil unless the metrics are fetched by HTTP.
type MetricsExporter struct {
	Provider  metric.MeterProvider
	Handler   http.Handler
	callbacks []func(ctx context.Context) error
}

// Shutdown flushes and stops every reader, all the errors are combined.
func (e *MetricsExporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	var merr error
	for _, callback := range e.callbacks {
		merr = multierr.Append(merr, callback(ctx))
	}
	e.callbacks = nil
	return merr
}

// Serves for test/dev environment.
func NewConsoleMetricsExporter(w io.Writer, interval, timeout time.Duration, opts ...stdoutmetric.Option) (*MetricsExporter, error) {
	if w != nil {
		opts = append(opts, stdoutmetric.WithWriter(w))
	}
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(interval),
		sdkmetric.WithTimeout(timeout),
	)))
	return &MetricsExporter{
		Provider:  mp,
		callbacks: []func(ctx context.Context) error{mp.Shutdown},
	}, nil
}

// Serves for the product environment and fetch stats metrics by HTTP.
// A nil registry means a new one.
func NewPrometheusMetricsExporter(reg *prometheus.Registry) (*MetricsExporter, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &MetricsExporter{
		Provider:  mp,
		Handler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		callbacks: []func(ctx context.Context) error{mp.Shutdown},
	}, nil
}

func NewMetricsExporter(typ MetricsExporterType, w io.Writer, interval time.Duration) (*MetricsExporter, error) {
	switch typ {
	case NoopMetricsExporter, "":
		return &MetricsExporter{Provider: noop.NewMeterProvider()}, nil
	case ConsoleMetricsExporter:
		return NewConsoleMetricsExporter(w, interval, interval)
	case PrometheusMetricsExporter:
		return NewPrometheusMetricsExporter(nil)
	default:
	}
	return nil, ErrUnknownMetricsExporter
}
