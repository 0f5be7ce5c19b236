package monitoring

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cmdfuzz/cmdfuzz/fuzzcfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter serves the metrics of a gatherer on /metrics.
type Exporter struct {
	server   *http.Server
	listener net.Listener
}

// ExportPrometheusMetrics launches the Prometheus exporter on the address of
// cfg. The returned exporter must be stopped by the caller.
func ExportPrometheusMetrics(cfg *fuzzcfg.Prometheus,
	gatherer prometheus.Gatherer) (*Exporter, error) {

	if !cfg.Enabled() {
		return nil, errors.New("prometheus exporter is disabled")
	}

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		gatherer, promhttp.HandlerOpts{},
	))

	e := &Exporter{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
	}

	go func() {
		err := e.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Prometheus exporter stopped: %v", err)
		}
	}()

	log.Infof("Prometheus exporter started on %v/metrics", e.Addr())

	return e, nil
}

// Addr returns the address the exporter listens on.
func (e *Exporter) Addr() net.Addr {
	return e.listener.Addr()
}

// Stop shuts the exporter down.
func (e *Exporter) Stop(ctx context.Context) error {
	return e.server.Shutdown(ctx)
}
