//go:build !dev
// +build !dev

package build

// Deployment specifies a production build.
const Deployment = Production

// LogLevel is unused in production builds, sub-loggers inherit the level of
// the configured backend.
var LogLevel = "info"
