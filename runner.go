package cmdfuzz

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cmdfuzz/cmdfuzz/afl"
	"github.com/cmdfuzz/cmdfuzz/codec"
	"github.com/cmdfuzz/cmdfuzz/engine"
	"github.com/cmdfuzz/cmdfuzz/fuzzcfg"
	"github.com/cmdfuzz/cmdfuzz/fuzzutil"
	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/cmdfuzz/cmdfuzz/monitoring"
	"github.com/cmdfuzz/cmdfuzz/mutate"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

const (
	// outputPerm is the permission of every file the runner writes.
	outputPerm = 0o600

	// synthesisSuffix is appended to the name of an output to name its
	// synthesized form.
	synthesisSuffix = ".syn"
)

// ErrNoSeeds is returned when none of the seed inputs could be decoded.
var ErrNoSeeds = errors.New("no usable seed inputs")

// RunnerConfig holds the dependencies of a Runner.
type RunnerConfig struct {
	// Grammar is the grammar of every seed and output.
	Grammar *grammar.Grammar

	// Mutation turns into the engine config of the runner's session.
	Mutation *fuzzcfg.Mutation

	// InputDir holds the seed inputs in interchange form. When it has
	// no regular files the grammar's seed input is used.
	InputDir string

	// OutputDir receives the outputs. Existing files are never
	// overwritten.
	OutputDir string

	// Seed seeds the engine session.
	Seed uint32

	// Iterations is the number of outputs to produce.
	Iterations int

	// Synthesize also writes the synthesized form of every output.
	Synthesize bool

	// Metrics, if set, observes every mutation and output.
	Metrics *monitoring.MutationMetrics

	// Clock measures the duration of the run.
	Clock clock.Clock

	// StatTicker paces the progress log lines.
	StatTicker ticker.Ticker

	// Quit stops the run before the next iteration once closed.
	Quit <-chan struct{}
}

// Summary describes a finished run.
type Summary struct {
	// Seeds is the number of seed inputs used.
	Seeds int

	// Outputs is the number of inputs written.
	Outputs int

	// Bytes is the number of bytes written, syntheses included.
	Bytes int

	// Interrupted is true if the run stopped before its last iteration.
	Interrupted bool

	// Elapsed is the duration of the run.
	Elapsed time.Duration
}

// String returns a one line description of the summary.
func (s Summary) String() string {
	return fmt.Sprintf("seeds=%d, outputs=%d, bytes=%d, interrupted=%v, "+
		"elapsed=%v", s.Seeds, s.Outputs, s.Bytes, s.Interrupted,
		s.Elapsed)
}

// runStats tracks the progress over one stats interval.
type runStats struct {
	outputs int
	bytes   int
	ops     map[engine.Op]int
}

// Reset clears the interval's counters.
func (r *runStats) Reset() {
	r.outputs = 0
	r.bytes = 0
	r.ops = make(map[engine.Op]int)
}

// Empty returns true if nothing was written during the interval.
func (r *runStats) Empty() bool {
	return r.outputs == 0
}

// String returns a human readable summary of the interval.
func (r *runStats) String() string {
	return fmt.Sprintf("Wrote %d outputs (%d bytes) since last stats: "+
		"add=%d, remove=%d, mutate=%d, header=%d", r.outputs, r.bytes,
		r.ops[engine.AddCommand], r.ops[engine.RemoveCommand],
		r.ops[engine.MutateCommand], r.ops[engine.MutateHeader])
}

// opCounter forwards engine observations to the metrics, if any, and counts
// the operations for the stats log.
type opCounter struct {
	stats   *runStats
	metrics *monitoring.MutationMetrics
}

// ObserveMutation records a top-level operation.
//
// NOTE: Part of the engine.Observer interface.
func (o *opCounter) ObserveMutation(op engine.Op) {
	o.stats.ops[op]++
	if o.metrics != nil {
		o.metrics.ObserveMutation(op)
	}
}

// ObserveField records a field mutation.
//
// NOTE: Part of the engine.Observer interface.
func (o *opCounter) ObserveField(kind grammar.FieldKind,
	outcome mutate.Outcome) {

	if o.metrics != nil {
		o.metrics.ObserveField(kind, outcome)
	}
}

// Runner drives one engine session over a directory of seed inputs, chaining
// every output into the next mutation of the same seed.
type Runner struct {
	cfg *RunnerConfig

	codec   *codec.Codec
	adapter *afl.Adapter
	stats   *runStats
}

// NewRunner returns a runner for cfg.
func NewRunner(cfg *RunnerConfig) *Runner {
	r := &Runner{
		cfg:   cfg,
		codec: codec.New(cfg.Grammar),
		stats: &runStats{},
	}
	r.stats.Reset()

	observer := &opCounter{
		stats:   r.stats,
		metrics: cfg.Metrics,
	}
	r.adapter = afl.New(afl.Config{
		Grammar: cfg.Grammar,
		NewEngineConfig: func(g *grammar.Grammar,
			seed uint64) *engine.Config {

			engineCfg := cfg.Mutation.EngineConfig(g, seed)
			engineCfg.Observer = observer

			return engineCfg
		},
	})

	return r
}

// Run performs the configured number of iterations and returns a summary. A
// closed quit channel ends the run early without an error. The stat ticker is
// stopped on return.
func (r *Runner) Run() (*Summary, error) {
	defer r.cfg.StatTicker.Stop()

	start := r.cfg.Clock.Now()

	seeds, err := r.loadSeeds()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0o700); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	h, err := r.adapter.Init(0, r.cfg.Seed)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.adapter.Deinit(h)
	}()

	summary := &Summary{
		Seeds: len(seeds),
	}

	r.stats.Reset()

	cfzdLog.Infof("Mutating %d seeds for %d iterations, grammar=%v, "+
		"seed=%d", len(seeds), r.cfg.Iterations, r.cfg.Grammar.Name,
		r.cfg.Seed)

	for i := 0; i < r.cfg.Iterations; i++ {
		if !r.stats.Empty() {
			r.cfg.StatTicker.Resume()
		}

		select {
		case <-r.cfg.StatTicker.Ticks():
			if !r.stats.Empty() {
				cfzdLog.Info(r.stats.String())
			} else {
				r.cfg.StatTicker.Pause()
			}
			r.stats.Reset()

		case <-r.cfg.Quit:
			cfzdLog.Infof("Run interrupted after %d iterations", i)
			summary.Interrupted = true
			summary.Elapsed = r.cfg.Clock.Now().Sub(start)

			return summary, nil

		default:
		}

		slot := i % len(seeds)
		out, err := r.adapter.Fuzz(h, seeds[slot])
		if err != nil {
			return nil, fmt.Errorf("mutate seed %d: %w", slot, err)
		}

		// The adapter reuses its buffer on the next call.
		seeds[slot] = bytes.Clone(out)

		n, err := r.writeOutput(h, i, seeds[slot])
		if err != nil {
			return nil, err
		}

		summary.Outputs++
		summary.Bytes += n
		r.stats.outputs++
		r.stats.bytes += n
	}

	summary.Elapsed = r.cfg.Clock.Now().Sub(start)

	return summary, nil
}

// loadSeeds reads and checks every regular file of the input directory in
// name order. Files that do not decode are skipped.
func (r *Runner) loadSeeds() ([][]byte, error) {
	entries, err := os.ReadDir(r.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var (
		seeds   [][]byte
		skipped int
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		path := filepath.Join(r.cfg.InputDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if _, err := r.codec.DecodeBytes(data); err != nil {
			cfzdLog.Warnf("Skipping seed %v: %v", path, err)
			if r.cfg.Metrics != nil {
				r.cfg.Metrics.ObserveDecodeFailure()
			}
			skipped++

			continue
		}

		seeds = append(seeds, data)
	}

	switch {
	case len(seeds) > 0:
		return seeds, nil

	case skipped > 0:
		return nil, fmt.Errorf("%w: %d invalid files in %v",
			ErrNoSeeds, skipped, r.cfg.InputDir)
	}

	cfzdLog.Infof("No seeds in %v, starting from the seed input of %v",
		r.cfg.InputDir, r.cfg.Grammar.Name)

	seed, err := r.codec.EncodeBytes(r.cfg.Grammar.SeedInput())
	if err != nil {
		return nil, err
	}

	return [][]byte{seed}, nil
}

// writeOutput writes the i-th output and, if enabled, its synthesis. It
// returns the number of bytes written.
func (r *Runner) writeOutput(h afl.Handle, i int, data []byte) (int, error) {
	name := filepath.Join(r.cfg.OutputDir, fmt.Sprintf("id_%06d", i))
	if err := fuzzutil.WriteNewFile(name, data, outputPerm); err != nil {
		return 0, err
	}
	n := len(data)

	if r.cfg.Metrics != nil {
		r.cfg.Metrics.ObserveOutputSize(n)
	}

	if !r.cfg.Synthesize {
		return n, nil
	}

	syn, err := r.adapter.PostProcess(h, data)
	if err != nil {
		return 0, fmt.Errorf("synthesize output %d: %w", i, err)
	}

	err = fuzzutil.WriteNewFile(name+synthesisSuffix, syn, outputPerm)
	if err != nil {
		return 0, err
	}

	return n + len(syn), nil
}
