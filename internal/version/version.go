// Package version exposes build metadata.
package version

import "runtime/debug"

const AppName = "komandir"

// Version is overridden at build time via -ldflags.
var Version = "dev"

// Revision returns the VCS revision baked into the binary, when available.
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 8 {
				return s.Value[:8]
			}
			return s.Value
		}
	}
	return ""
}

// Short returns a printable version string.
func Short() string {
	if rev := Revision(); rev != "" {
		return Version + " (" + rev + ")"
	}
	return Version
}
