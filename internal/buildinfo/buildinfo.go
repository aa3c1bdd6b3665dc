// Package buildinfo exposes version metadata for the CLI. Values can be set
// with -ldflags, through the cli package, or come from the VCS stamp the Go
// toolchain embeds in the binary.
package buildinfo

import (
	"runtime/debug"
	"strings"

	"github.com/flarebyte/lambundle/cli"
)

var (
	// Version defaults to cli.Version, then "dev".
	Version = ""
	// Commit falls back to the embedded vcs.revision.
	Commit = ""
	// Date falls back to cli.Date, then the embedded vcs.time.
	Date    = ""
	BuiltBy = ""
)

// readVCS is replaced in tests.
var readVCS = func() map[string]string {
	out := map[string]string{}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	for _, s := range bi.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			out[s.Key] = s.Value
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Summary returns a concise single-line version string such as
// "1.2.3 (commit=abcdef1, date=2026-02-09)".
func Summary() string {
	vcs := readVCS()
	v := firstNonEmpty(Version, cli.Version, "dev")
	c := firstNonEmpty(Commit, vcs["vcs.revision"])
	d := firstNonEmpty(Date, cli.Date, vcs["vcs.time"])

	parts := make([]string, 0, 3)
	if c != "" {
		if len(c) > 7 {
			c = c[:7]
		}
		if vcs["vcs.modified"] == "true" && Commit == "" {
			c += "-dirty"
		}
		parts = append(parts, "commit="+c)
	}
	if d != "" {
		parts = append(parts, "date="+d)
	}
	if len(parts) > 0 {
		v += " (" + strings.Join(parts, ", ") + ")"
	}
	return v
}
