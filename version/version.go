// Package version carries build information for dbpool.
//
// The variables are set at build time using ldflags:
//
//	go build -ldflags "-X github.com/go-i2p/dbpool/version.Version=1.0.0 \
//	    -X github.com/go-i2p/dbpool/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/dbpool
package version

import "runtime"

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"
	// GitCommit is the short commit hash.
	GitCommit = ""
	// BuildTime is an RFC 3339 timestamp.
	BuildTime = ""
)

// Full returns the version followed by the commit and build time when known,
// e.g. "1.0.0-abc1234 (2026-01-02T15:04:05Z)".
func Full() string {
	v := Version
	if GitCommit != "" {
		v += "-" + GitCommit
	}
	if BuildTime != "" {
		v += " (" + BuildTime + ")"
	}
	return v
}

// Info is build information in a form suitable for structured logs.
type Info struct {
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}
