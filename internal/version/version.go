// Package version reports how the blotch binary was built.
//
// Release builds set the variables below with ldflags:
//
//	-X github.com/jmylchreest/blotch/internal/version.Version=x.y.z
//
// Binaries built with go install fall back to the module build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Date      string `json:"date,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Current returns the build information of the running binary.
func Current() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = strings.TrimPrefix(bi.Main.Version, "v")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// ShortCommit returns the first 8 characters of the commit hash.
func (i Info) ShortCommit() string {
	if len(i.Commit) > 8 {
		return i.Commit[:8]
	}
	return i.Commit
}

// String formats the information for the version command.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "blotch version %s (", i.Version)
	if i.Commit != "" {
		fmt.Fprintf(&b, "commit: %s", i.ShortCommit())
		if i.Modified {
			b.WriteString("+dirty")
		}
		b.WriteString(", ")
	}
	if i.Date != "" {
		fmt.Fprintf(&b, "built: %s, ", i.Date)
	}
	fmt.Fprintf(&b, "%s, %s)", i.GoVersion, i.Platform)
	return b.String()
}

// String returns the version line of the running binary.
func String() string {
	return Current().String()
}

// UserAgent is the User-Agent header sent when fetching remote images.
func UserAgent() string {
	return "blotch/" + Current().Version
}
