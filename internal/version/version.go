// Package version tracks the service version.
package version

// Version is the current release. It is bumped by the release tooling.
var Version = "0.2.1"

// DevVersion marks development builds.
var DevVersion = Version + "-dev"

// GetCurrentVersion returns the version string for the given run mode.
func GetCurrentVersion(mode string) string {
	if mode == "prod" {
		return Version
	}
	return DevVersion
}
