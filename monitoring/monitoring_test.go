package monitoring

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/cmdfuzz/cmdfuzz/engine"
	"github.com/cmdfuzz/cmdfuzz/fuzzcfg"
	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/cmdfuzz/cmdfuzz/mutate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestMutationMetricsCount checks every counter moves with its observation.
func TestMutationMetricsCount(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewMutationMetrics(reg)
	require.NoError(t, err)

	m.ObserveMutation(engine.AddCommand)
	m.ObserveMutation(engine.AddCommand)
	m.ObserveMutation(engine.MutateHeader)
	m.ObserveField(grammar.KindBinary, mutate.Spliced)
	m.ObserveDecodeFailure()
	m.ObserveOutputSize(100)

	require.Equal(t, 2.0, testutil.ToFloat64(
		m.mutations.WithLabelValues("add"),
	))
	require.Equal(t, 1.0, testutil.ToFloat64(
		m.mutations.WithLabelValues("header"),
	))
	require.Equal(t, 1.0, testutil.ToFloat64(
		m.fields.WithLabelValues("binary", "splice"),
	))
	require.Equal(t, 1.0, testutil.ToFloat64(m.decodeFailures))

	// Registering twice on the same registry fails.
	_, err = NewMutationMetrics(reg)
	require.Error(t, err)
}

// TestExporterServesMetrics starts the exporter on a random port and scrapes
// it once.
func TestExporterServesMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewMutationMetrics(reg)
	require.NoError(t, err)
	m.ObserveMutation(engine.RemoveCommand)

	_, err = ExportPrometheusMetrics(fuzzcfg.DefaultPrometheus(), reg)
	require.Error(t, err)

	e, err := ExportPrometheusMetrics(
		&fuzzcfg.Prometheus{Listen: "127.0.0.1:0"}, reg,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, e.Stop(context.Background()))
	})

	resp, err := http.Get(fmt.Sprintf("http://%v/metrics", e.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body),
		`cmdfuzz_mutations_total{op="remove"} 1`)
}
