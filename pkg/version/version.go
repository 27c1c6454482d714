// Package version holds build metadata for the cacheanalysis binary.
package version

import (
	"runtime/debug"
)

const unknown = "<unknown>"

// Version is the release version, set with -ldflags "-X .../version.Version=v1.2.3".
var Version = "dev"

// Commit is the Git hash the binary was built from.
var Commit = unknown

// Date is the build timestamp.
var Date = unknown

// InitBinaryVersion fills unset fields from the module build info embedded by
// the Go toolchain. Values injected through ldflags take precedence.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}
