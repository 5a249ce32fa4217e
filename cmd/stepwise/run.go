package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/stepwise"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/codec"
	"github.com/hupe1980/stepwise/config"
	"github.com/hupe1980/stepwise/exchange"
	"github.com/hupe1980/stepwise/metrics/prom"
)

type runCmd struct {
	logLevel    string
	jsonLog     bool
	archivePath string
	metricsPath string
	manifest    bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run a job file" }
func (*runCmd) Usage() string {
	return `run [flags] <job.yaml>:
  Run the job described by the YAML file. Every partition acts as one
  local node; partial results travel through the configured store.

`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.BoolVar(&c.jsonLog, "json-log", false, "log as JSON")
	f.StringVar(&c.archivePath, "archive", "", "write the result archive to this file")
	f.StringVar(&c.metricsPath, "metrics", "", "write Prometheus metrics in text format to this file")
	f.BoolVar(&c.manifest, "manifest", false, "publish the job manifest to the store")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	logger, err := newLogger(os.Stderr, c.logLevel, c.jsonLog)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	job, err := config.Load(f.Arg(0))
	if err != nil {
		logger.Error("loading job", "path", f.Arg(0), "error", err)
		return subcommands.ExitFailure
	}
	if err := c.run(ctx, job, logger, os.Stdout); err != nil {
		logger.Error("job failed", "job", job.Name, "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func newLogger(w io.Writer, level string, json bool) (*stepwise.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: l}
	if json {
		return stepwise.NewLogger(slog.NewJSONHandler(w, opts)), nil
	}
	return stepwise.NewLogger(slog.NewTextHandler(w, opts)), nil
}

func (c *runCmd) run(ctx context.Context, job *config.Job, logger *stepwise.Logger, stdout io.Writer) error {
	compression, err := archive.ParseCompression(job.Compression)
	if err != nil {
		return err
	}
	store, commitLog, err := openStore(ctx, job.Store)
	if err != nil {
		return err
	}

	stats := &stepwise.BasicMetricsCollector{}
	collectors := stepwise.MultiMetricsCollector{stats}
	reg := prometheus.NewRegistry()
	if c.metricsPath != "" {
		pc, err := prom.New(reg, "stepwise")
		if err != nil {
			return err
		}
		collectors = append(collectors, pc)
	}

	r := stepwise.New(
		stepwise.WithLogger(logger.WithJob(job.Name)),
		stepwise.WithMetricsCollector(collectors),
		stepwise.WithResourceConfig(job.Resources),
		stepwise.WithStore(store, commitLog),
		stepwise.WithCompression(compression),
	)

	parts, err := loadPartitions(ctx, r.Controller(), job)
	if err != nil {
		return err
	}

	tables, result, err := execute(ctx, r, job, parts)
	if err != nil {
		return err
	}
	logger.Info("job completed", "job", job.Name, "algorithm", job.Algorithm, "nodes", len(parts),
		"peak_memory_bytes", r.Controller().PeakMemoryUsage())

	if c.archivePath != "" {
		data, err := archive.Encode(result, archive.WithCompression(compression))
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.archivePath, data, 0o644); err != nil {
			return err
		}
	}
	if c.manifest {
		if ex, ok := r.Transport().(*exchange.Exchange); ok {
			m, err := ex.WriteManifest(ctx, job.Name)
			if err != nil {
				return err
			}
			logger.Info("manifest written", "job", job.Name, "entries", len(m.Entries))
		}
	}
	if c.metricsPath != "" {
		if err := prometheus.WriteToTextfile(c.metricsPath, reg); err != nil {
			return err
		}
	}

	out := output{
		Job:        job.Name,
		Algorithm:  job.Algorithm,
		Method:     job.Method,
		Nodes:      len(parts),
		Tables:     tables,
		Stats:      stats.GetStats(),
		PeakMemory: r.Controller().PeakMemoryUsage(),
	}
	data, err := codec.GoJSON{}.MarshalIndent(out)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if job.Output == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(job.Output, data, 0o644)
}
