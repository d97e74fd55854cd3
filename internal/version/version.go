// Package version carries build metadata for the back and pusher binaries.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/davidmehren/workadventure/internal/version.Version=1.0.0 \
//	                   -X github.com/davidmehren/workadventure/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/davidmehren/workadventure/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// UserAgent identifies a component in outgoing relay and admin API requests.
func UserAgent(component string) string {
	return "workadventure-" + component + "/" + Version
}
