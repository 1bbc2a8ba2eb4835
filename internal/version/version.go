// Package version provides build identity for the bridge.
package version

import "fmt"

const (
	// Name is the binary name.
	Name = "cdp-bridge"

	// Version is the current version of cdp-bridge.
	Version = "0.1.0"
)

// Commit and Date are set at build time via -ldflags.
var (
	Commit = "unknown"
	Date   = "unknown"
)

// UserAgent returns the User-Agent header value for outbound HTTP calls
// such as target discovery.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", Name, Version)
}

// Full returns the long version string for the version command.
func Full() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", Name, Version, Commit, Date)
}
