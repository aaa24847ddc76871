// Package version carries the build identity stamped in via -ldflags.
// Untouched development builds report "dev".
package version

import "fmt"

var (
	// Version is the release version, set with -ldflags "-X".
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the build identity for --version output and the status
// page header.
func String() string {
	if GitSHA == "unknown" && BuildTime == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}
