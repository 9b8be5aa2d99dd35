package version

import (
	"fmt"
	"runtime"
)

// Overridden at build time with -ldflags "-X github.com/TFMV/recon/version.Version=...".
var (
	Version   = "0.3.0"
	BuildDate = "2026-10-01"
	Commit    = "none"
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

func GetVersion() string {
	return Version
}

func GetBuildDate() string {
	return BuildDate
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		Commit:    Commit,
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("recon %s (commit %s, built %s, %s)", i.Version, i.Commit, i.BuildDate, i.GoVersion)
}
