// Package version provides build-time version information.
package version

import (
	"fmt"
	"runtime"

	"gocv.io/x/gocv"
)

// These variables are set at build time using -ldflags
var (
	// Version is the semantic version
	Version = "0.3.0"

	// BuildTime is the UTC time when the binary was built
	BuildTime = "unknown"

	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Info describes the running binary and the OpenCV it links against.
type Info struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	GoCV      string `json:"gocv"`
	OpenCV    string `json:"opencv"`
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		GoCV:      gocv.Version(),
		OpenCV:    gocv.OpenCVVersion(),
	}
}

// String returns a one-line summary for start-up logs.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s, gocv %s, opencv %s)",
		i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.GoCV, i.OpenCV)
}
