package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = ""
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns version and build information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: commit(),
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// commit prefers the ldflags value, falling back to the VCS revision
// the toolchain stamps into module builds.
func commit() string {
	if GitCommit != "" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return "unknown"
}

// String returns the application version string.
func String() string {
	return Version
}
