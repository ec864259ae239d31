// Package version reports build metadata. Release builds set it with
// ldflags:
//
//	-X github.com/soyeahso/attendant/internal/version.Version=1.0.0
//	-X github.com/soyeahso/attendant/internal/version.Commit=abc123
//	-X github.com/soyeahso/attendant/internal/version.Date=2026-01-01
//
// A plain go build or go install falls back to the module and VCS stamps.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const unknown = "unknown"

var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown

	// Modified is set when the VCS stamp reports uncommitted changes.
	Modified bool
)

func init() { stamp(debug.ReadBuildInfo) }

// stamp fills whatever ldflags left at its default from the build info.
func stamp(read func() (*debug.BuildInfo, bool)) {
	info, ok := read()
	if !ok {
		return
	}
	if v := info.Main.Version; Version == "dev" && v != "" && v != "(devel)" {
		Version = v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = s.Value
			}
		case "vcs.modified":
			Modified = s.Value == "true"
		}
	}
}

func shortCommit() string {
	c := Commit
	if len(c) > 7 {
		c = c[:7]
	}
	if Modified {
		c += "+dirty"
	}
	return c
}

// Info is the one-line string printed by the version command.
func Info() string {
	return fmt.Sprintf("attendant %s (%s, built %s, %s, %s/%s)",
		Version, shortCommit(), Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Fields returns the build metadata for health and status payloads.
func Fields() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  shortCommit(),
		"date":    Date,
		"go":      runtime.Version(),
	}
}
