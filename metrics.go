package stepwise

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prom package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordStep is called after every step and finalize call.
	// step is the step identifier, err is nil if successful.
	RecordStep(step string, duration time.Duration, err error)

	// RecordAllocation is called once per run with the bytes allocated for
	// partial results and results.
	RecordAllocation(bytes int64)

	// RecordTransfer is called after every archive written to or read
	// from an exchange.
	RecordTransfer(bytes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStep(string, time.Duration, error)  {}
func (NoopMetricsCollector) RecordAllocation(int64)                   {}
func (NoopMetricsCollector) RecordTransfer(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	StepCount          atomic.Int64
	StepErrors         atomic.Int64
	StepTotalNanos     atomic.Int64
	AllocatedBytes     atomic.Int64
	TransferCount      atomic.Int64
	TransferErrors     atomic.Int64
	TransferBytes      atomic.Int64
	TransferTotalNanos atomic.Int64
}

// RecordStep implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStep(_ string, duration time.Duration, err error) {
	b.StepCount.Add(1)
	b.StepTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.StepErrors.Add(1)
	}
}

// RecordAllocation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocation(bytes int64) {
	b.AllocatedBytes.Add(bytes)
}

// RecordTransfer implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTransfer(bytes int, duration time.Duration, err error) {
	b.TransferCount.Add(1)
	b.TransferBytes.Add(int64(bytes))
	b.TransferTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.TransferErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		StepCount:        b.StepCount.Load(),
		StepErrors:       b.StepErrors.Load(),
		StepAvgNanos:     avg(b.StepTotalNanos.Load(), b.StepCount.Load()),
		AllocatedBytes:   b.AllocatedBytes.Load(),
		TransferCount:    b.TransferCount.Load(),
		TransferErrors:   b.TransferErrors.Load(),
		TransferBytes:    b.TransferBytes.Load(),
		TransferAvgNanos: avg(b.TransferTotalNanos.Load(), b.TransferCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	StepCount        int64
	StepErrors       int64
	StepAvgNanos     int64
	AllocatedBytes   int64
	TransferCount    int64
	TransferErrors   int64
	TransferBytes    int64
	TransferAvgNanos int64
}

// MultiMetricsCollector forwards every record to each of its collectors.
type MultiMetricsCollector []MetricsCollector

func (m MultiMetricsCollector) RecordStep(step string, d time.Duration, err error) {
	for _, c := range m {
		c.RecordStep(step, d, err)
	}
}

func (m MultiMetricsCollector) RecordAllocation(bytes int64) {
	for _, c := range m {
		c.RecordAllocation(bytes)
	}
}

func (m MultiMetricsCollector) RecordTransfer(bytes int, d time.Duration, err error) {
	for _, c := range m {
		c.RecordTransfer(bytes, d, err)
	}
}
