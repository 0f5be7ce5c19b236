package build

// DeploymentType tells development builds, which carry the test logging
// hooks, from production builds. The type is picked with the "dev" build tag.
type DeploymentType byte

const (
	// Development builds honor CMDFUZZ_LOGLEVEL and let unit tests log
	// straight to stdout.
	Development DeploymentType = iota

	// Production builds only log through the backend the binary sets up.
	Production
)

// String returns the name of the deployment, as printed at startup.
func (b DeploymentType) String() string {
	switch b {
	case Development:
		return "development"

	case Production:
		return "production"

	default:
		return "unknown"
	}
}
