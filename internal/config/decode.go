package config

import (
	"fmt"
	"math"
	"sort"

	"cuelang.org/go/cue"
)

func present(v cue.Value, path string) bool {
	return v.LookupPath(cue.ParsePath(path)).Exists()
}

func resolved(v cue.Value) cue.Value {
	if d, ok := v.Default(); ok {
		return d
	}
	return v
}

func lookup(v cue.Value, path string) (cue.Value, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return cue.Value{}, &ConfigError{Field: path, Constraint: ConstraintRequired, Err: fmt.Errorf("missing required field: %s", path)}
	}
	return resolved(f), nil
}

func stringAt(v cue.Value, path string) (string, error) {
	f, err := lookup(v, path)
	if err != nil {
		return "", err
	}
	s, err := f.String()
	if err != nil {
		return "", &ConfigError{Field: path, Constraint: ConstraintType, Err: err}
	}
	return s, nil
}

func boolAt(v cue.Value, path string) (bool, error) {
	f, err := lookup(v, path)
	if err != nil {
		return false, err
	}
	b, err := f.Bool()
	if err != nil {
		return false, &ConfigError{Field: path, Constraint: ConstraintType, Err: err}
	}
	return b, nil
}

func intAt(v cue.Value, path string) (int, error) {
	f, err := lookup(v, path)
	if err != nil {
		return 0, err
	}
	n, err := f.Int64()
	if err != nil {
		return 0, &ConfigError{Field: path, Constraint: ConstraintType, Err: err}
	}
	return int(n), nil
}

func stringsAt(v cue.Value, path string) ([]string, error) {
	f, err := lookup(v, path)
	if err != nil {
		return nil, err
	}
	out := []string{}
	if err := f.Decode(&out); err != nil {
		return nil, &ConfigError{Field: path, Constraint: ConstraintType, Err: err}
	}
	return out, nil
}

func stringMapAt(v cue.Value, path string) (map[string]string, error) {
	out := map[string]string{}
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return out, nil
	}
	iter, err := resolved(f).Fields()
	if err != nil {
		return nil, &ConfigError{Field: path, Constraint: ConstraintType, Err: err}
	}
	for iter.Next() {
		s, err := resolved(iter.Value()).String()
		if err != nil {
			return nil, &ConfigError{Field: path + "." + iter.Selector().String(), Constraint: ConstraintType, Err: err}
		}
		out[iter.Selector().Unquoted()] = s
	}
	return out, nil
}

// parseBundlerSection reads bundler settings; unknown user keys are kept aside
// so the bundle stage can report them instead of failing.
func parseBundlerSection(v, user cue.Value) (BundlerOptions, error) {
	var b BundlerOptions
	var err error
	if b.Standalone, err = stringAt(v, "bundler.standalone"); err != nil {
		return b, err
	}
	if b.Format, err = stringAt(v, "bundler.format"); err != nil {
		return b, err
	}
	if b.Platform, err = stringAt(v, "bundler.platform"); err != nil {
		return b, err
	}
	if b.Target, err = stringAt(v, "bundler.target"); err != nil {
		return b, err
	}
	if b.BrowserField, err = boolAt(v, "bundler.browserField"); err != nil {
		return b, err
	}
	if b.IgnoreMissing, err = boolAt(v, "bundler.ignoreMissing"); err != nil {
		return b, err
	}
	if b.DetectGlobals, err = boolAt(v, "bundler.detectGlobals"); err != nil {
		return b, err
	}
	if b.InsertGlobalVars, err = stringMapAt(v, "bundler.insertGlobalVars"); err != nil {
		return b, err
	}
	if b.Define, err = stringMapAt(v, "bundler.define"); err != nil {
		return b, err
	}

	ub := user.LookupPath(cue.ParsePath("bundler"))
	if !ub.Exists() {
		return b, nil
	}
	iter, err := ub.Fields()
	if err != nil {
		return b, &ConfigError{Field: "bundler", Constraint: ConstraintType, Err: err}
	}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		if !knownBundlerKeys[name] {
			b.Unsupported = append(b.Unsupported, name)
		}
	}
	sort.Strings(b.Unsupported)
	return b, nil
}

func parseEnvSection(v, user cue.Value) (map[string]any, error) {
	if !present(user, "env") {
		return nil, nil
	}
	env := map[string]any{}
	if err := v.LookupPath(cue.ParsePath("env")).Decode(&env); err != nil {
		return nil, &ConfigError{Field: "env", Constraint: ConstraintType, Err: err}
	}
	return env, nil
}

func parseInstallSection(v, user cue.Value) (*InstallSpec, error) {
	if !present(user, "install") {
		return nil, nil
	}
	var s InstallSpec
	var err error
	if s.Manifest, err = stringAt(v, "install.pkg"); err != nil {
		return nil, err
	}
	if present(user, "install.target") {
		if s.Target, err = stringAt(v, "install.target"); err != nil {
			return nil, err
		}
	}
	if s.Image, err = stringAt(v, "install.image"); err != nil {
		return nil, err
	}
	if s.Engine, err = stringAt(v, "install.engine"); err != nil {
		return nil, err
	}
	if s.Command, err = stringsAt(v, "install.command"); err != nil {
		return nil, err
	}
	if len(s.Command) == 0 {
		return nil, &ConfigError{Field: "install.command", Constraint: ConstraintRequired, Err: fmt.Errorf("command must not be empty")}
	}
	return &s, nil
}

func parseFilesSection(v cue.Value) ([]ExtraFile, error) {
	f, err := lookup(v, "files")
	if err != nil {
		return nil, err
	}
	list, err := f.List()
	if err != nil {
		return nil, &ConfigError{Field: "files", Constraint: ConstraintType, Err: err}
	}
	var out []ExtraFile
	for i := 0; list.Next(); i++ {
		field := fmt.Sprintf("files.%d", i)
		e := resolved(list.Value())
		switch e.Kind() {
		case cue.StringKind:
			p, _ := e.String()
			if p == "" {
				return nil, &ConfigError{Field: field, Constraint: ConstraintRequired, Err: fmt.Errorf("path must not be empty")}
			}
			out = append(out, ExtraFile{Path: p})
		case cue.StructKind:
			ef, err := parseObjectFile(e, field)
			if err != nil {
				return nil, err
			}
			out = append(out, ef)
		default:
			return nil, &ConfigError{Field: field, Constraint: ConstraintType, Err: fmt.Errorf("expected path or {name, data}")}
		}
	}
	return out, nil
}

func parseObjectFile(e cue.Value, field string) (ExtraFile, error) {
	name, err := resolved(e.LookupPath(cue.ParsePath("name"))).String()
	if err != nil {
		return ExtraFile{}, &ConfigError{Field: field + ".name", Constraint: ConstraintType, Err: err}
	}
	if name == "" {
		return ExtraFile{}, &ConfigError{Field: field + ".name", Constraint: ConstraintRequired, Err: fmt.Errorf("name must not be empty")}
	}
	dv := resolved(e.LookupPath(cue.ParsePath("data")))
	ef := ExtraFile{Name: name}
	switch dv.Kind() {
	case cue.StringKind:
		s, _ := dv.String()
		ef.Data = []byte(s)
	case cue.BytesKind:
		b, err := dv.Bytes()
		if err != nil {
			return ExtraFile{}, &ConfigError{Field: field + ".data", Constraint: ConstraintType, Err: err}
		}
		ef.Data = b
	default:
		return ExtraFile{}, &ConfigError{Field: field + ".data", Constraint: ConstraintType, Err: fmt.Errorf("expected string or bytes")}
	}
	return ef, nil
}

func parseDeploySection(v, user cue.Value) (*DeploySpec, error) {
	if !present(user, "deploy") {
		return nil, nil
	}
	var d DeploySpec
	var err error
	remote := map[string]*string{
		"region":          &d.Remote.Region,
		"accessKeyId":     &d.Remote.AccessKeyID,
		"secretAccessKey": &d.Remote.SecretAccessKey,
		"sessionToken":    &d.Remote.SessionToken,
		"profile":         &d.Remote.Profile,
		"endpoint":        &d.Remote.Endpoint,
	}
	for key, dst := range remote {
		path := "deploy.config." + key
		if !present(user, path) {
			continue
		}
		if *dst, err = stringAt(v, path); err != nil {
			return nil, err
		}
	}
	if d.Name, err = stringAt(v, "deploy.name"); err != nil {
		return nil, err
	}
	if d.Role, err = stringAt(v, "deploy.role"); err != nil {
		return nil, err
	}
	if d.Runtime, err = stringAt(v, "deploy.runtime"); err != nil {
		return nil, err
	}
	if d.Timeout, err = intAt(v, "deploy.timeout"); err != nil {
		return nil, err
	}
	if d.Memory, err = intAt(v, "deploy.memory"); err != nil {
		return nil, err
	}
	if d.Overwrite, err = boolAt(v, "deploy.overwrite"); err != nil {
		return nil, err
	}
	if present(user, "deploy.description") {
		if d.Description, err = stringAt(v, "deploy.description"); err != nil {
			return nil, err
		}
	}
	if d.Architecture, err = stringAt(v, "deploy.architecture"); err != nil {
		return nil, err
	}
	if d.Publish, err = boolAt(v, "deploy.publish"); err != nil {
		return nil, err
	}
	return &d, nil
}

// normalizeValue returns a deep copy of in with integral floats turned into
// int64, so JSON-decoded numbers satisfy int constraints.
func normalizeValue(in any) any {
	switch t := in.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = normalizeValue(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[fmt.Sprint(k)] = normalizeValue(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = normalizeValue(v)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = v
		}
		return out
	case []byte:
		return append([]byte(nil), t...)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case int:
		return int64(t)
	default:
		return in
	}
}
