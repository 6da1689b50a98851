// Package version exposes the tfmodel build version.
package version

// version is set at build time via -ldflags "-X github.com/tfmodel/tfmodel/pkg/version.version=v1.2.3".
//
//nolint:gochecknoglobals // Build-time injected version string.
var version = "dev"

// GetVersion returns the current tfmodel version string.
func GetVersion() string {
	return version
}
