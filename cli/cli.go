// Package cli holds build-time identification for external build scripts.
package cli

import "strings"

// Version and Date can be set at build time using ldflags, e.g.:
//
//	-ldflags "-X 'github.com/flarebyte/lambundle/cli.Version=1.2.3' -X 'github.com/flarebyte/lambundle/cli.Date=2026-02-09'"
var (
	Version string
	Date    string
)

// NiceDate returns Date with dashes replaced by spaces.
func NiceDate() string {
	return strings.ReplaceAll(Date, "-", " ")
}
