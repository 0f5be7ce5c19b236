// Package monitoring exposes mutation statistics as Prometheus metrics.
package monitoring

import (
	"github.com/cmdfuzz/cmdfuzz/engine"
	"github.com/cmdfuzz/cmdfuzz/grammar"
	"github.com/cmdfuzz/cmdfuzz/mutate"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cmdfuzz"

// MutationMetrics counts mutations by category and field outcome. It
// implements engine.Observer.
type MutationMetrics struct {
	mutations      *prometheus.CounterVec
	fields         *prometheus.CounterVec
	decodeFailures prometheus.Counter
	outputSize     prometheus.Histogram
}

// A compile time check to ensure MutationMetrics implements the
// engine.Observer interface.
var _ engine.Observer = (*MutationMetrics)(nil)

// NewMutationMetrics creates the metrics and registers them with reg.
func NewMutationMetrics(reg prometheus.Registerer) (*MutationMetrics,
	error) {

	m := &MutationMetrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Structural mutations applied, by category.",
		}, []string{"op"}),
		fields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_mutations_total",
			Help:      "Field mutator runs, by field kind and outcome.",
		}, []string{"kind", "outcome"}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Inputs rejected by the decoder.",
		}),
		outputSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "output_size_bytes",
			Help:      "Size of encoded mutated inputs.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		}),
	}

	collectors := []prometheus.Collector{
		m.mutations, m.fields, m.decodeFailures, m.outputSize,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveMutation counts one structural mutation.
//
// NOTE: Part of the engine.Observer interface.
func (m *MutationMetrics) ObserveMutation(op engine.Op) {
	m.mutations.WithLabelValues(op.String()).Inc()
}

// ObserveField counts one field mutator run.
//
// NOTE: Part of the engine.Observer interface.
func (m *MutationMetrics) ObserveField(kind grammar.FieldKind,
	outcome mutate.Outcome) {

	m.fields.WithLabelValues(kind.String(), outcome.String()).Inc()
}

// ObserveDecodeFailure counts one rejected input.
func (m *MutationMetrics) ObserveDecodeFailure() {
	m.decodeFailures.Inc()
}

// ObserveOutputSize records the size of one mutated encoding.
func (m *MutationMetrics) ObserveOutputSize(n int) {
	m.outputSize.Observe(float64(n))
}
