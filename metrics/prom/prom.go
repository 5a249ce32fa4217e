// Package prom exports step, allocation and transfer metrics to Prometheus.
//
//	c, err := prom.New(prometheus.DefaultRegisterer, "stepwise")
//	if err != nil {
//	    return err
//	}
//	runner := stepwise.New(stepwise.WithMetricsCollector(c))
//	http.Handle("/metrics", promhttp.Handler())
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records metrics into Prometheus vectors.
type Collector struct {
	steps           *prometheus.CounterVec
	stepLatency     *prometheus.HistogramVec
	allocated       prometheus.Counter
	transfers       *prometheus.CounterVec
	transferBytes   prometheus.Counter
	transferLatency prometheus.Histogram
}

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Protocol steps executed, by step and outcome.",
		}, []string{"step", "status"}),
		stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of protocol steps.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		allocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocated_bytes_total",
			Help:      "Bytes allocated for partial results.",
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Partial results shipped through the exchange, by outcome.",
		}, []string{"status"}),
		transferBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_bytes_total",
			Help:      "Encoded bytes shipped through the exchange.",
		}),
		transferLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Duration of exchange transfers.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, col := range []prometheus.Collector{c.steps, c.stepLatency, c.allocated, c.transfers, c.transferBytes, c.transferLatency} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordStep records one executed step.
func (c *Collector) RecordStep(step string, d time.Duration, err error) {
	c.steps.WithLabelValues(step, outcome(err)).Inc()
	c.stepLatency.WithLabelValues(step).Observe(d.Seconds())
}

// RecordAllocation records bytes allocated for partial results.
func (c *Collector) RecordAllocation(bytes int64) {
	if bytes > 0 {
		c.allocated.Add(float64(bytes))
	}
}

// RecordTransfer records one exchange transfer.
func (c *Collector) RecordTransfer(bytes int, d time.Duration, err error) {
	c.transfers.WithLabelValues(outcome(err)).Inc()
	if bytes > 0 {
		c.transferBytes.Add(float64(bytes))
	}
	c.transferLatency.Observe(d.Seconds())
}
