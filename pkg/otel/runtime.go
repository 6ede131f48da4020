package otel

import (
	"time"

	hostmetrics "go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
)

// DefaultRuntimeInterval is how often Go runtime memory statistics are sampled
const DefaultRuntimeInterval = 30 * time.Second

// StartRuntimeMetrics exports Go runtime (heap, GC, goroutines) and host metrics
// through the provider installed by Init
func StartRuntimeMetrics(interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultRuntimeInterval
	}
	provider := GetMeterProvider()

	if err := runtime.Start(
		runtime.WithMeterProvider(provider),
		runtime.WithMinimumReadMemStatsInterval(interval),
	); err != nil {
		return err
	}
	return hostmetrics.Start(hostmetrics.WithMeterProvider(provider))
}
