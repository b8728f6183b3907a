package infrastructure

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// SystemMetrics records the resource footprint of a run
type SystemMetrics struct {
	goRoutines      metric.Int64Gauge
	memoryAllocated metric.Int64Gauge
	memorySystem    metric.Int64Gauge
	gcCount         metric.Int64Gauge
	runDuration     metric.Float64Gauge
}

// SystemStats is a point-in-time snapshot of the Go runtime
type SystemStats struct {
	Goroutines     int
	AllocatedBytes uint64
	SystemBytes    uint64
	GCCount        uint32
	Elapsed        time.Duration
}

// NewSystemMetrics creates the runtime gauges on the global meter
func NewSystemMetrics() (*SystemMetrics, error) {
	meter := otel.Meter(meterName)

	goRoutines, err := meter.Int64Gauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}
	memoryAllocated, err := meter.Int64Gauge(
		"system_memory_allocated_bytes",
		metric.WithDescription("Heap bytes allocated by the Go runtime"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}
	memorySystem, err := meter.Int64Gauge(
		"system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}
	gcCount, err := meter.Int64Gauge(
		"system_gc_count",
		metric.WithDescription("Completed garbage collection cycles"),
	)
	if err != nil {
		return nil, err
	}
	runDuration, err := meter.Float64Gauge(
		"run_duration_seconds",
		metric.WithDescription("Wall time of the run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &SystemMetrics{
		goRoutines:      goRoutines,
		memoryAllocated: memoryAllocated,
		memorySystem:    memorySystem,
		gcCount:         gcCount,
		runDuration:     runDuration,
	}, nil
}

// Collect snapshots the runtime and records it
func (sm *SystemMetrics) Collect(ctx context.Context, startTime time.Time) *SystemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &SystemStats{
		Goroutines:     runtime.NumGoroutine(),
		AllocatedBytes: m.Alloc,
		SystemBytes:    m.Sys,
		GCCount:        m.NumGC,
		Elapsed:        time.Since(startTime),
	}
	if sm == nil {
		return stats
	}

	sm.goRoutines.Record(ctx, int64(stats.Goroutines))
	sm.memoryAllocated.Record(ctx, int64(stats.AllocatedBytes))
	sm.memorySystem.Record(ctx, int64(stats.SystemBytes))
	sm.gcCount.Record(ctx, int64(stats.GCCount))
	sm.runDuration.Record(ctx, stats.Elapsed.Seconds())
	return stats
}

// LogValue renders the snapshot as a log group
func (stats *SystemStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("goroutines", stats.Goroutines),
		slog.Float64("allocated_mb", float64(stats.AllocatedBytes)/1024/1024),
		slog.Float64("system_mb", float64(stats.SystemBytes)/1024/1024),
		slog.Uint64("gc_count", uint64(stats.GCCount)),
		slog.Duration("elapsed", stats.Elapsed),
	)
}
