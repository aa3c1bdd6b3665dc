// Package report renders a build summary as canonical YAML (sorted keys,
// two-space indent, single trailing newline).
package report

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/flarebyte/lambundle/internal/archive"
	"github.com/flarebyte/lambundle/internal/deploy"
)

// Report summarizes one pipeline run.
type Report struct {
	Entry          string
	Handler        string
	Stages         []string
	BundleBytes    int
	Inputs         []string
	Warnings       []string
	SourceMapName  string
	SourceMapBytes int
	ArchiveBytes   int
	Entries        []archive.EntryInfo
	OutputPath     string
	InstallDir     string
	Function       *deploy.FunctionMetadata
}

func (r Report) toMap() (map[string]any, error) {
	bundle := map[string]any{"bytes": r.BundleBytes}
	if len(r.Inputs) > 0 {
		bundle["inputs"] = stringsToAny(r.Inputs)
	}
	if len(r.Warnings) > 0 {
		bundle["warnings"] = stringsToAny(r.Warnings)
	}
	entries := make([]any, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, map[string]any{"name": e.Name, "size": e.Size, "crc32": e.CRC32})
	}
	m := map[string]any{
		"entry":   r.Entry,
		"handler": r.Handler,
		"stages":  stringsToAny(r.Stages),
		"bundle":  bundle,
		"archive": map[string]any{"bytes": r.ArchiveBytes, "entries": entries},
	}
	if r.SourceMapName != "" {
		m["sourcemap"] = map[string]any{"name": r.SourceMapName, "bytes": r.SourceMapBytes}
	}
	if r.OutputPath != "" {
		m["output"] = r.OutputPath
	}
	if r.InstallDir != "" {
		m["install"] = map[string]any{"dir": r.InstallDir}
	}
	if r.Function != nil {
		b, err := yaml.Marshal(r.Function)
		if err != nil {
			return nil, err
		}
		var fn map[string]any
		if err := yaml.Unmarshal(b, &fn); err != nil {
			return nil, err
		}
		m["function"] = fn
	}
	return m, nil
}

// Marshal returns the canonical YAML bytes of r.
func Marshal(r Report) ([]byte, error) {
	m, err := r.toMap()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(canonicalNode(m)); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	return append(out, '\n'), nil
}

// Write writes the report to path, creating parent directories.
func Write(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func scalarFrom(v any) *yaml.Node {
	n := &yaml.Node{}
	_ = n.Encode(v)
	return n
}

func canonicalNode(v any) *yaml.Node {
	switch x := v.(type) {
	case map[string]any:
		n := &yaml.Node{Kind: yaml.MappingNode}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			n.Content = append(n.Content, scalarNode(k), canonicalNode(x[k]))
		}
		return n
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, it := range x {
			n.Content = append(n.Content, canonicalNode(it))
		}
		return n
	default:
		return scalarFrom(x)
	}
}
