// Package version derives the build identity reported in logs and the
// health endpoint. An -ldflags override wins, then the VCS revision
// embedded by the Go toolchain, then "dev".
package version

import "runtime/debug"

// AppName prefixes version strings and log identities.
const AppName = "workbench"

// gitCommitOverride is injected with -ldflags for builds where the .git
// directory is not present (container image builds).
var gitCommitOverride string

// GitCommit is the short commit hash, or "dev" when no build metadata
// is available (go test, builds outside a checkout).
var GitCommit = resolveCommit()

func resolveCommit() string {
	if gitCommitOverride != "" {
		return shorten(gitCommitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return shorten(s.Value)
			}
		}
	}
	return "dev"
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "workbench/<commit>".
func Full() string {
	return AppName + "/" + GitCommit
}
