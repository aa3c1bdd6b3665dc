package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// LoadFile reads raw options from a .cue, .json, .yaml or .yml file. Relative
// paths inside the file are resolved against the file's directory.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		v := cuecontext.New().CompileBytes(data)
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("invalid config: %v", err)
		}
		if err := v.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid config: %v", err)
		}
	case ".json", ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid config: %v", err)
		}
	default:
		return nil, errors.New("unsupported config format: expected .cue, .json, .yaml or .yml")
	}
	if raw == nil {
		raw = map[string]any{}
	}
	resolvePaths(raw, filepath.Dir(path))
	return raw, nil
}

func resolvePaths(raw map[string]any, base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for _, key := range []string{"entry", "output", "sourcemapOutput"} {
		if s, ok := raw[key].(string); ok {
			raw[key] = abs(s)
		}
	}
	if files, ok := raw["files"].([]any); ok {
		for i, f := range files {
			if s, ok := f.(string); ok {
				files[i] = abs(s)
			}
		}
	}
	if install, ok := raw["install"].(map[string]any); ok {
		for _, key := range []string{"pkg", "target"} {
			if s, ok := install[key].(string); ok {
				install[key] = abs(s)
			}
		}
	}
}
