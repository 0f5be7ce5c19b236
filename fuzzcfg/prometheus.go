package fuzzcfg

import (
	"fmt"
	"net"
)

// Prometheus configures the Prometheus exporter.
//
//nolint:ll
type Prometheus struct {
	// Listen is the net address that the exporter will listen on. An
	// empty address disables the exporter.
	Listen string `long:"listen" description:"the interface we should listen on for Prometheus"`
}

// DefaultPrometheus is the default configuration for the Prometheus metrics
// exporter. It is disabled.
func DefaultPrometheus() *Prometheus {
	return &Prometheus{}
}

// Enabled returns whether or not Prometheus monitoring is enabled.
func (p *Prometheus) Enabled() bool {
	return p.Listen != ""
}

// Validate checks the listen address.
//
// NOTE: Part of the Validator interface.
func (p *Prometheus) Validate() error {
	if !p.Enabled() {
		return nil
	}

	if _, _, err := net.SplitHostPort(p.Listen); err != nil {
		return fmt.Errorf("invalid prometheus listen address %q: %w",
			p.Listen, err)
	}

	return nil
}

// A compile time check to ensure Prometheus implements the Validator
// interface.
var _ Validator = (*Prometheus)(nil)
