package cmdfuzz

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmdfuzz/cmdfuzz/babynotes"
	"github.com/cmdfuzz/cmdfuzz/codec"
	"github.com/cmdfuzz/cmdfuzz/fuzzcfg"
	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/cmdfuzz/cmdfuzz/monitoring"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testStartTime = time.Unix(1_700_000_000, 0)

// newTestRunnerConfig returns a runner config over a fresh input and output
// directory.
func newTestRunnerConfig(t *testing.T, withHeader bool) *RunnerConfig {
	t.Helper()

	g, err := babynotes.Grammar(withHeader)
	require.NoError(t, err)

	metrics, err := monitoring.NewMutationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	return &RunnerConfig{
		Grammar:    g,
		Mutation:   fuzzcfg.DefaultMutation(),
		InputDir:   t.TempDir(),
		OutputDir:  filepath.Join(t.TempDir(), "out"),
		Seed:       42,
		Iterations: 20,
		Metrics:    metrics,
		Clock:      clock.NewTestClock(testStartTime),
		StatTicker: ticker.NewForce(time.Hour),
	}
}

// writeSeed stores the encoding of in as a seed file.
func writeSeed(t *testing.T, cfg *RunnerConfig, name string,
	in *grammar.Input) {

	t.Helper()

	data, err := codec.New(cfg.Grammar).EncodeBytes(in)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.InputDir, name), data, 0o600,
	))
}

// readOutputs returns the outputs of a run in order.
func readOutputs(t *testing.T, cfg *RunnerConfig, suffix string) [][]byte {
	t.Helper()

	var outputs [][]byte
	for i := 0; i < cfg.Iterations; i++ {
		name := fmt.Sprintf("id_%06d%s", i, suffix)
		data, err := os.ReadFile(filepath.Join(cfg.OutputDir, name))
		require.NoError(t, err)

		outputs = append(outputs, data)
	}

	return outputs
}

// TestRunFromGrammarSeed checks that an empty input directory starts from the
// grammar's seed input and that every output is a valid input.
func TestRunFromGrammarSeed(t *testing.T) {
	t.Parallel()

	cfg := newTestRunnerConfig(t, true)
	runner := NewRunner(cfg)

	summary, err := runner.Run()
	require.NoError(t, err)
	require.Equal(t, 1, summary.Seeds)
	require.Equal(t, cfg.Iterations, summary.Outputs)
	require.False(t, summary.Interrupted)
	require.Zero(t, summary.Elapsed)

	c := codec.New(cfg.Grammar)
	total := 0
	for _, data := range readOutputs(t, cfg, "") {
		_, err := c.DecodeBytes(data)
		require.NoError(t, err)

		total += len(data)
	}
	require.Equal(t, total, summary.Bytes)

	// Every iteration performs exactly one top-level mutation.
	ops := 0
	for _, n := range runner.stats.ops {
		ops += n
	}
	require.Equal(t, cfg.Iterations, ops)

	_, err = os.Stat(filepath.Join(cfg.OutputDir, "id_000000.syn"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRunDeterministic asserts that two runs with the same seed and inputs
// write the same outputs, and that another seed diverges.
func TestRunDeterministic(t *testing.T) {
	t.Parallel()

	run := func(seed uint32) [][]byte {
		cfg := newTestRunnerConfig(t, false)
		cfg.Seed = seed

		_, err := NewRunner(cfg).Run()
		require.NoError(t, err)

		return readOutputs(t, cfg, "")
	}

	first := run(7)
	require.Equal(t, first, run(7))
	require.NotEqual(t, first, run(8))
}

// TestRunChainsSeeds checks that seeds are visited round robin and that each
// output derives from the previous output of the same seed.
func TestRunChainsSeeds(t *testing.T) {
	t.Parallel()

	cfg := newTestRunnerConfig(t, false)
	cfg.Iterations = 6

	g := cfg.Grammar
	writeSeed(t, cfg, "a", g.SeedInput())
	writeSeed(t, cfg, "b", &grammar.Input{
		Commands: []grammar.Command{{
			Opcode: babynotes.CmdShowNote,
			Fields: []grammar.FieldValue{grammar.UInt(3)},
		}},
	})

	summary, err := NewRunner(cfg).Run()
	require.NoError(t, err)
	require.Equal(t, 2, summary.Seeds)

	// Output i and i+2 share a seed, so their command counts differ by
	// at most one.
	c := codec.New(g)
	outputs := readOutputs(t, cfg, "")
	for i := 0; i+2 < len(outputs); i++ {
		prev, err := c.DecodeBytes(outputs[i])
		require.NoError(t, err)
		next, err := c.DecodeBytes(outputs[i+2])
		require.NoError(t, err)

		diff := len(next.Commands) - len(prev.Commands)
		require.LessOrEqual(t, diff, 1)
		require.GreaterOrEqual(t, diff, -1)
	}
}

// TestRunSynthesize checks the synthesized outputs end with the exit command.
func TestRunSynthesize(t *testing.T) {
	t.Parallel()

	cfg := newTestRunnerConfig(t, false)
	cfg.Iterations = 5
	cfg.Synthesize = true

	summary, err := NewRunner(cfg).Run()
	require.NoError(t, err)

	total := 0
	for _, data := range readOutputs(t, cfg, "") {
		total += len(data)
	}

	exit := []byte(fmt.Sprintf("%d\n", babynotes.CmdExit))
	for _, syn := range readOutputs(t, cfg, synthesisSuffix) {
		require.True(t, bytes.HasSuffix(syn, exit))
		total += len(syn)
	}
	require.Equal(t, total, summary.Bytes)
}

// TestRunRefusesOverwrite asserts existing outputs are left alone and fail
// the run.
func TestRunRefusesOverwrite(t *testing.T) {
	t.Parallel()

	cfg := newTestRunnerConfig(t, false)
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0o700))

	existing := filepath.Join(cfg.OutputDir, "id_000000")
	require.NoError(t, os.WriteFile(existing, []byte("keep"), 0o600))

	_, err := NewRunner(cfg).Run()
	require.ErrorContains(t, err, "refusing to overwrite")

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	require.Equal(t, []byte("keep"), data)
}

// TestRunSeedErrors covers malformed seed files.
func TestRunSeedErrors(t *testing.T) {
	t.Parallel()

	t.Run("only invalid seeds", func(t *testing.T) {
		t.Parallel()

		cfg := newTestRunnerConfig(t, false)
		require.NoError(t, os.WriteFile(
			filepath.Join(cfg.InputDir, "junk"), []byte{1, 2, 3},
			0o600,
		))

		_, err := NewRunner(cfg).Run()
		require.ErrorIs(t, err, ErrNoSeeds)
	})

	t.Run("invalid seeds are skipped", func(t *testing.T) {
		t.Parallel()

		cfg := newTestRunnerConfig(t, false)
		require.NoError(t, os.WriteFile(
			filepath.Join(cfg.InputDir, "junk"), []byte{1, 2, 3},
			0o600,
		))
		writeSeed(t, cfg, "seed", cfg.Grammar.SeedInput())
		require.NoError(t, os.Mkdir(
			filepath.Join(cfg.InputDir, "dir"), 0o700,
		))

		summary, err := NewRunner(cfg).Run()
		require.NoError(t, err)
		require.Equal(t, 1, summary.Seeds)
	})

	t.Run("missing input directory", func(t *testing.T) {
		t.Parallel()

		cfg := newTestRunnerConfig(t, false)
		cfg.InputDir = filepath.Join(cfg.InputDir, "missing")

		_, err := NewRunner(cfg).Run()
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

// TestRunInterrupted checks that a closed quit channel stops the run before
// anything is written.
func TestRunInterrupted(t *testing.T) {
	t.Parallel()

	cfg := newTestRunnerConfig(t, false)
	quit := make(chan struct{})
	close(quit)
	cfg.Quit = quit

	summary, err := NewRunner(cfg).Run()
	require.NoError(t, err)
	require.True(t, summary.Interrupted)
	require.Zero(t, summary.Outputs)

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestRunStats checks the interval counters behind the progress log.
func TestRunStats(t *testing.T) {
	t.Parallel()

	var s runStats
	s.Reset()
	require.True(t, s.Empty())

	s.outputs = 2
	s.bytes = 30
	require.False(t, s.Empty())
	require.Contains(t, s.String(), "Wrote 2 outputs (30 bytes)")

	s.Reset()
	require.True(t, s.Empty())
	require.Empty(t, s.ops)
}
