package observability

import (
	"context"
	"runtime"
	"strings"

	"github.com/samber/lo"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type AppStats struct {
	goroutines metric.Int64ObservableUpDownCounter
	processes  metric.Int64ObservableUpDownCounter
	reg        metric.Registration
}

// Close unregisters the runtime callbacks.
func (stats *AppStats) Close() error {
	if stats == nil || stats.reg == nil {
		return nil
	}
	err := stats.reg.Unregister()
	stats.reg = nil
	return err
}

func appStatsName(name string) string {
	builder := &strings.Builder{}
	builder.WriteString("xrbtree/app")
	builder.Write([]byte("/"))
	if len(strings.TrimSpace(name)) > 0 {
		builder.WriteString(name)
	} else {
		builder.WriteString("default")
	}
	return builder.String()
}

// NewAppStats observes the goroutines and the GOMAXPROCS of the process
// by the global otel meter provider, or by the first given provider.
// The go runtime metrics (memory, GC, uptime) are started on the same
// provider, they stop with the provider shutdown.
func NewAppStats(name string, mp ...metric.MeterProvider) (*AppStats, error) {
	provider := otel.GetMeterProvider()
	if len(mp) > 0 && mp[0] != nil {
		provider = mp[0]
	}
	meter := provider.Meter(
		appStatsName(name),
		metric.WithInstrumentationVersion(otelruntime.Version()),
	)
	stats := &AppStats{
		goroutines: lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
			"app.core.goroutines",
			metric.WithDescription(`The application goroutines' info.`),
		)),
		processes: lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
			"app.core.processes",
			metric.WithDescription(`The application processes' info.`),
		)),
	}
	reg, err := meter.RegisterCallback(func(ctx context.Context, ob metric.Observer) error {
		ob.ObserveInt64(stats.goroutines, int64(runtime.NumGoroutine()))
		ob.ObserveInt64(stats.processes, int64(runtime.GOMAXPROCS(0)))
		return nil
	}, stats.goroutines, stats.processes)
	if err != nil {
		return nil, err
	}
	stats.reg = reg
	if err = otelruntime.Start(otelruntime.WithMeterProvider(provider)); err != nil {
		_ = reg.Unregister()
		return nil, err
	}
	return stats, nil
}
