// Package version reports the build identity printed by `anbu version`.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags at release time; module builds fall back to VCS
// metadata stamped by the toolchain.
var (
	Version = "dev"
	Commit  = ""
	Date    = "unknown"
)

func String() string {
	return fmt.Sprintf("anbu %s (commit=%s, date=%s, go=%s)", Version, commit(), Date, runtime.Version())
}

func commit() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return "none"
}
