// Package version reports how the running kotae binary was built.
//
// Release builds stamp the three variables below:
//
//	go build -ldflags "-X github.com/bdobrica/kotae/common/version.Version=v1.2.0 \
//	  -X github.com/bdobrica/kotae/common/version.GitCommit=$(git rev-parse --short HEAD) \
//	  -X github.com/bdobrica/kotae/common/version.BuildTime=$(date -u +%FT%TZ)"
//
// Plain `go build` and `go install` leave them empty; Current then falls back
// to the VCS stamp the Go toolchain embeds in the binary.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	Version   = ""
	GitCommit = ""
	BuildTime = ""
)

const devVersion = "v0.0.0-dev"

// Build describes the running binary. It is reported by `kotae version`, the
// startup log line, /health and /status.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Time      string `json:"build_time,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	GoVersion string `json:"go_version"`
}

// Current returns the build of the running binary.
func Current() Build {
	info, _ := debug.ReadBuildInfo()
	return resolve(Version, GitCommit, BuildTime, info)
}

func resolve(ver, commit, built string, info *debug.BuildInfo) Build {
	b := Build{Version: ver, Commit: commit, Time: built, GoVersion: runtime.Version()}
	if info != nil {
		if b.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			b.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if b.Commit == "" {
					b.Commit = s.Value
				}
			case "vcs.time":
				if b.Time == "" {
					b.Time = s.Value
				}
			case "vcs.modified":
				b.Dirty = s.Value == "true"
			}
		}
		if info.GoVersion != "" {
			b.GoVersion = info.GoVersion
		}
	}
	if b.Version == "" {
		b.Version = devVersion
	}
	if len(b.Commit) > 12 {
		b.Commit = b.Commit[:12]
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	return b
}

// String renders b on one line, e.g.
// "kotae v1.2.0 (3f9c2a1b7d0e, dirty) built 2026-01-02T03:04:05Z go1.25.8".
func (b Build) String() string {
	var sb strings.Builder
	sb.WriteString("kotae ")
	sb.WriteString(b.Version)
	sb.WriteString(" (")
	sb.WriteString(b.Commit)
	if b.Dirty {
		sb.WriteString(", dirty")
	}
	sb.WriteString(")")
	if b.Time != "" {
		sb.WriteString(" built ")
		sb.WriteString(b.Time)
	}
	sb.WriteString(" ")
	sb.WriteString(b.GoVersion)
	return sb.String()
}
