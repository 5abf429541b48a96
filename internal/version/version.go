// Package version exposes build metadata for planning-agent. The values are
// injected via ldflags at release build time; a plain go build reports a
// development build.
package version

var (
	// Version is the release tag, e.g. v1.2.0.
	Version = "dev"
	// Commit is the short git commit hash.
	Commit = "none"
	// Date is the build date in UTC.
	Date = "unknown"
)

// GetVersion returns the version as a display string.
func GetVersion() string {
	if Version == "dev" {
		return Version + " (development build)"
	}
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
