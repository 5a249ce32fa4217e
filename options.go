package stepwise

import (
	"log/slog"

	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/blobstore"
	"github.com/hupe1980/stepwise/exchange"
	"github.com/hupe1980/stepwise/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	resources        resource.Config
	transport        exchange.Transport
	store            blobstore.BlobStore
	commitLog        blobstore.CommitLog
	compression      archive.Compression
	registry         *archive.Registry
}

// Option configures a Runner.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring steps,
// allocations and transfers. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &stepwise.BasicMetricsCollector{}
//	r := stepwise.New(stepwise.WithMetricsCollector(metrics))
//	// ... run jobs ...
//	stats := metrics.GetStats()
//	fmt.Printf("Steps: %d, Avg latency: %dns\n", stats.StepCount, stats.StepAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for steps and transfers.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := stepwise.NewJSONLogger(slog.LevelDebug)
//	r := stepwise.New(stepwise.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceConfig bounds the memory of partial results, the number of
// local steps run concurrently and the exchange throughput.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = cfg
	}
}

// WithTransport sets the transport partial results travel through.
// It takes precedence over WithStore.
func WithTransport(t exchange.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithStore ships partial results through an exchange over store, so every
// partial result crosses an archive round trip as it would between
// processes. commitLog may be nil.
func WithStore(store blobstore.BlobStore, commitLog blobstore.CommitLog) Option {
	return func(o *options) {
		o.store = store
		o.commitLog = commitLog
	}
}

// WithCompression sets the archive compression used by WithStore.
func WithCompression(c archive.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithRegistry replaces the default archive registry used by WithStore.
func WithRegistry(reg *archive.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      archive.CompressionLZ4,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
