package config

import (
	"slices"
	"strings"
)

// CurrentConfigVersion is the configVersion applied when a config omits it.
// It must match the default declared in schema.cue.
const CurrentConfigVersion = "1"

// SupportedConfigVersions lists every configVersion Normalize accepts.
var SupportedConfigVersions = []string{CurrentConfigVersion}

// IsSupportedConfigVersion reports whether v is one of SupportedConfigVersions.
func IsSupportedConfigVersion(v string) bool {
	return slices.Contains(SupportedConfigVersions, v)
}

// SupportedConfigVersionsCSV renders SupportedConfigVersions for error messages.
func SupportedConfigVersionsCSV() string {
	return strings.Join(SupportedConfigVersions, ", ")
}
