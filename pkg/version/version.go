// Package version holds the build information set by the linker.
package version

var (
	// Version is set with -ldflags "-X github.com/docker/mdstream/pkg/version.Version=..."
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
)
