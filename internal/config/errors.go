package config

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// Constraint names the kind of rule a configuration value violated.
type Constraint string

const (
	ConstraintRequired Constraint = "required"
	ConstraintType     Constraint = "type"
	ConstraintEnum     Constraint = "enum"
	ConstraintRange    Constraint = "range"
	ConstraintRequires Constraint = "requires"
	ConstraintUnknown  Constraint = "unknown"
)

// ConfigError reports the offending field path and the violated constraint.
type ConfigError struct {
	Field      string
	Constraint Constraint
	Err        error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid config (%s): %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("invalid config field %s (%s): %v", e.Field, e.Constraint, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

var enumFields = map[string]bool{
	"bundler.format":      true,
	"bundler.platform":    true,
	"install.engine":      true,
	"deploy.runtime":      true,
	"deploy.architecture": true,
}

func requireStringField(v cue.Value, name string) error {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return &ConfigError{Field: name, Constraint: ConstraintRequired, Err: fmt.Errorf("missing required field: %s", name)}
	}
	if f.Kind() != cue.StringKind {
		return &ConfigError{Field: name, Constraint: ConstraintType, Err: fmt.Errorf("invalid type for field: %s (expected string)", name)}
	}
	return nil
}

var rangeFields = map[string]bool{
	"deploy.timeout": true,
	"deploy.memory":  true,
}

// fromCUEError turns the first schema violation into a ConfigError. The user
// value decides between type and enum/range failures.
func fromCUEError(err error, user cue.Value) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return &ConfigError{Constraint: ConstraintType, Err: err}
	}
	first := list[0]
	field := fieldPath(first.Path())
	msg := strings.TrimSpace(first.Error())
	return &ConfigError{Field: field, Constraint: classify(field, msg, user), Err: errors.New(msg)}
}

func fieldPath(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.HasPrefix(p, "#") {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

func classify(field, msg string, user cue.Value) Constraint {
	if strings.Contains(msg, "incomplete value") {
		return ConstraintRequired
	}
	if strings.Contains(msg, "not allowed") {
		return ConstraintUnknown
	}
	var kind cue.Kind
	if field != "" {
		if uv := user.LookupPath(cue.ParsePath(field)); uv.Exists() {
			kind = uv.Kind()
		}
	}
	switch {
	case enumFields[field] && kind == cue.StringKind:
		return ConstraintEnum
	case rangeFields[field] && (kind == cue.IntKind || kind == cue.FloatKind):
		return ConstraintRange
	case strings.Contains(msg, "out of bound"):
		return ConstraintRange
	default:
		return ConstraintType
	}
}

func errUnsupportedVersion(v string) error {
	return fmt.Errorf("unsupported configVersion: %q (supported: %s)", v, SupportedConfigVersionsCSV())
}

func errRequires(what string) error {
	return fmt.Errorf("requires %s", what)
}

func errMemoryMultiple(n int) error {
	return fmt.Errorf("memory must be a multiple of 64, got %d", n)
}
