// Package cmdfuzz implements the batch runner of the command sequence
// mutator: it replays the mutation engine over a directory of seed inputs
// outside of a fuzzing host.
package cmdfuzz

import (
	"context"
	"time"

	"github.com/cmdfuzz/cmdfuzz/build"
	"github.com/cmdfuzz/cmdfuzz/monitoring"
	"github.com/cmdfuzz/cmdfuzz/signal"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/prometheus/client_golang/prometheus"
)

// exporterStopTimeout bounds the graceful shutdown of the metrics exporter.
const exporterStopTimeout = 5 * time.Second

// Main is the true entry point of cmdfuzz. It runs the configured batch and
// returns once it is done or a shutdown was requested.
func Main(cfg *Config, interceptor signal.Interceptor) error {
	defer func() {
		cfzdLog.Info("Shutdown complete")
		if err := logRotator.Close(); err != nil {
			cfzdLog.Errorf("Could not close log rotator: %v", err)
		}
	}()

	cfzdLog.Infof("Version: %s commit=%s, build=%s, logging=%s",
		build.Version(), build.Commit, build.Deployment,
		build.LoggingType)

	g, err := cfg.Target.Load()
	if err != nil {
		cfzdLog.Errorf("Unable to load grammar: %v", err)
		return err
	}

	registry := prometheus.NewRegistry()
	metrics, err := monitoring.NewMutationMetrics(registry)
	if err != nil {
		return err
	}

	if cfg.Prometheus.Enabled() {
		exporter, err := monitoring.ExportPrometheusMetrics(
			cfg.Prometheus, registry,
		)
		if err != nil {
			cfzdLog.Errorf("Unable to start metrics exporter: %v",
				err)
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(
				context.Background(), exporterStopTimeout,
			)
			defer cancel()

			if err := exporter.Stop(ctx); err != nil {
				cfzdLog.Errorf("Unable to stop metrics "+
					"exporter: %v", err)
			}
		}()
	}

	runner := NewRunner(&RunnerConfig{
		Grammar:    g,
		Mutation:   cfg.Mutation,
		InputDir:   cfg.InputDir,
		OutputDir:  cfg.OutputDir,
		Seed:       cfg.Seed,
		Iterations: cfg.Iterations,
		Synthesize: cfg.Synthesize,
		Metrics:    metrics,
		Clock:      clock.NewDefaultClock(),
		StatTicker: ticker.New(cfg.StatsInterval),
		Quit:       interceptor.ShutdownChannel(),
	})

	summary, err := runner.Run()
	if err != nil {
		cfzdLog.Criticalf("Run failed: %v", err)
		return err
	}

	cfzdLog.Infof("Run finished: %v", summary)

	return nil
}
