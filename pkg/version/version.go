// Package version reports how the idxstore binary was built.
//
// Version, Commit and Date can be injected with ldflags:
//
//	-X github.com/Aman-CERP/idxstore/pkg/version.Version=$(VERSION)
//
// When they are not, Commit and Date fall back to the VCS stamp the Go
// toolchain embeds in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build metadata.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"

	GoVersion = runtime.Version()
)

// backendModules are the dependencies whose versions matter when reporting
// a problem against a backend.
var backendModules = map[string]string{
	"github.com/elastic/go-elasticsearch/v8": "elasticsearch",
	"github.com/blevesearch/bleve/v2":        "bleve",
}

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`

	// Clients maps backend name to the client library version linked in.
	Clients map[string]string `json:"clients,omitempty"`
}

// String returns a one-line summary.
func String() string {
	info := GetInfo()
	s := fmt.Sprintf("idxstore %s (commit: %s, built: %s, go: %s)",
		info.Version, info.Commit, info.Date, info.GoVersion)
	if info.Modified {
		s += " [modified]"
	}
	return s
}

// Short returns just the version string.
func Short() string {
	return Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	return info
}

// fillFromBuildInfo copies VCS settings into fields ldflags left unset and
// records backend client versions.
func fillFromBuildInfo(info *BuildInfo, bi *debug.BuildInfo) {
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.Date == "unknown" && s.Value != "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}

	for _, dep := range bi.Deps {
		mod := dep
		if mod.Replace != nil {
			mod = mod.Replace
		}
		if name, ok := backendModules[dep.Path]; ok {
			if info.Clients == nil {
				info.Clients = make(map[string]string)
			}
			info.Clients[name] = mod.Version
		}
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
