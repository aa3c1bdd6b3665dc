package bundler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const globalsDirPattern = "lambundle-globals-*"

// GlobalsModule returns the source of the module injected into the bundle to
// provide globals. A non-empty env is merged into the process environment
// when the bundle is loaded; every insertGlobalVars entry other than "noop"
// exports that global. References to these names anywhere in the bundle are
// bound to the exports, so directive prologues such as "use strict" stay
// first in their scope.
func GlobalsModule(env map[string]any, globals map[string]string) (string, error) {
	var lines []string
	names := make([]string, 0, len(globals))
	for name, expr := range globals {
		if expr == "noop" || (name == "process" && len(env) > 0) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("export var %s = %s;", name, globals[name]))
	}
	if len(env) > 0 {
		literal, err := EnvLiteral(env)
		if err != nil {
			return "", err
		}
		lines = append(lines,
			"var p = globalThis.process;",
			"Object.assign(p.env, "+literal+");",
			"export { p as process };")
	}
	return strings.Join(lines, "\n"), nil
}

// EnvLiteral renders env as a JSON object literal with sorted keys.
func EnvLiteral(env map[string]any) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("environment is not serializable: %w", err)
	}
	return string(data), nil
}

// writeGlobalsModule stores src in a fresh temporary directory. The caller
// removes the directory once the build is done.
func writeGlobalsModule(src string) (path string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", globalsDirPattern)
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { _ = os.RemoveAll(dir) }
	path = filepath.Join(dir, "globals.mjs")
	if err := os.WriteFile(path, []byte(src+"\n"), 0o644); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func isGlobalsModule(input string) bool {
	return strings.Contains(filepath.ToSlash(input), strings.TrimSuffix(globalsDirPattern, "*"))
}
