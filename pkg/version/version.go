// Package version exposes build-time version metadata.
package version

import (
	"github.com/Masterminds/semver/v3"
)

// Version is the semantic version string embedded at build time.
var Version = "0.0.0-src"

// Commit and Date are filled in by release builds.
var (
	Commit = "unknown"
	Date   = "unknown"
)

// Set version at compile time with
// go build -ldflags "-X extblock/pkg/version.Version=1.0.0" -o extblock

// String returns Version with any leading "v" removed when it parses as
// semver, and Version unchanged otherwise.
func String() string {
	v, err := Parse()
	if err != nil {
		return Version
	}
	return v.String()
}

// Parse parses Version as a semantic version.
func Parse() (*semver.Version, error) {
	return semver.NewVersion(Version)
}
