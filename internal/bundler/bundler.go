// Package bundler turns a handler entry point into a single self-contained
// module using esbuild.
package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/flarebyte/lambundle/internal/config"
)

// Result is the output of one bundler invocation.
type Result struct {
	Code []byte
	// SourceMap is set only when a source map name was configured.
	SourceMap *string
	// Inputs lists the source files that went into the bundle, sorted.
	Inputs []string
	// Warnings holds esbuild warnings and modules left unresolved.
	Warnings []string
}

// BuildError carries the messages reported by esbuild.
type BuildError struct {
	Messages []string
}

func (e *BuildError) Error() string {
	return "bundle failed: " + strings.Join(e.Messages, "; ")
}

const outDirName = ".lambundle-out"

// Bundle builds cfg.Entry in memory. Apart from a temporary globals module,
// nothing is written to disk except the source map when an output path for
// it is configured.
func Bundle(ctx context.Context, cfg config.PipelineConfig) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	entry, err := filepath.Abs(cfg.Entry)
	if err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(entry); err != nil {
		return Result{}, err
	}

	globals, err := GlobalsModule(cfg.Environment, cfg.Bundler.InsertGlobalVars)
	if err != nil {
		return Result{}, err
	}
	var inject []string
	if globals != "" {
		path, cleanup, err := writeGlobalsModule(globals)
		if err != nil {
			return Result{}, err
		}
		defer cleanup()
		inject = append(inject, path)
	}

	missing := &missingModules{}
	opts, err := buildOptions(cfg, entry, missing)
	if err != nil {
		return Result{}, err
	}
	opts.Inject = inject
	res := api.Build(opts)
	if len(res.Errors) > 0 {
		return Result{}, &BuildError{Messages: formatMessages(res.Errors)}
	}

	out := Result{Warnings: append(formatMessages(res.Warnings), missing.warnings()...)}
	outfile := opts.Outfile
	for _, f := range res.OutputFiles {
		switch f.Path {
		case outfile:
			out.Code = f.Contents
		case outfile + ".map":
			if cfg.SourceMapName != "" {
				m := string(f.Contents)
				out.SourceMap = &m
			}
		}
	}
	if out.Code == nil {
		return Result{}, &BuildError{Messages: []string{"no output produced for " + cfg.Entry}}
	}
	if !cfg.Minify {
		out.Code = untagComments(out.Code)
	}
	if out.SourceMap != nil {
		out.Code = append(out.Code, []byte("//# sourceMappingURL="+cfg.SourceMapName+"\n")...)
		if cfg.SourceMapOutputPath != "" {
			if err := writeSourceMap(cfg.SourceMapOutputPath, *out.SourceMap); err != nil {
				return Result{}, err
			}
		}
	}
	if out.Inputs, err = metafileInputs(res.Metafile); err != nil {
		return Result{}, err
	}
	return out, nil
}

func buildOptions(cfg config.PipelineConfig, entry string, missing *missingModules) (api.BuildOptions, error) {
	b := cfg.Bundler
	opts := api.BuildOptions{
		EntryPoints:   []string{entry},
		Bundle:        true,
		Write:         false,
		Metafile:      true,
		LogLevel:      api.LogLevelSilent,
		AbsWorkingDir: filepath.Dir(entry),
		Outfile:       filepath.Join(filepath.Dir(entry), outDirName, filepath.Base(entry)),
		External:      append([]string(nil), cfg.ExcludedModules...),
		Define:        map[string]string{},
	}

	switch b.Format {
	case "esm":
		opts.Format = api.FormatESModule
	case "iife":
		opts.Format = api.FormatIIFE
		opts.GlobalName = b.Standalone
	default:
		opts.Format = api.FormatCommonJS
	}
	switch b.Platform {
	case "neutral":
		opts.Platform = api.PlatformNeutral
	default:
		opts.Platform = api.PlatformNode
	}
	if err := applyTarget(&opts, b.Target); err != nil {
		return opts, err
	}
	if b.BrowserField {
		opts.MainFields = []string{"browser", "module", "main"}
	} else {
		opts.MainFields = []string{"main", "module"}
	}
	if b.DetectGlobals {
		opts.Define["global"] = "globalThis"
	}
	for k, v := range b.Define {
		opts.Define[k] = v
	}
	if b.IgnoreMissing {
		opts.Plugins = append(opts.Plugins, missing.plugin())
	}

	if cfg.Minify {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		opts.LegalComments = api.LegalCommentsNone
		opts.Sourcemap = api.SourceMapExternal
	} else {
		opts.LegalComments = api.LegalCommentsInline
		opts.Plugins = append(opts.Plugins, keepComments())
	}
	return opts, nil
}

var esTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

func applyTarget(opts *api.BuildOptions, target string) error {
	t := strings.ToLower(strings.TrimSpace(target))
	if v, ok := strings.CutPrefix(t, "node"); ok && v != "" {
		opts.Engines = []api.Engine{{Name: api.EngineNode, Version: v}}
		return nil
	}
	if es, ok := esTargets[t]; ok {
		opts.Target = es
		return nil
	}
	return fmt.Errorf("unsupported bundler target %q", target)
}

func writeSourceMap(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func formatMessages(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			out = append(out, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		out = append(out, m.Text)
	}
	return out
}

func metafileInputs(metafile string) ([]string, error) {
	if metafile == "" {
		return nil, nil
	}
	var meta struct {
		Inputs map[string]json.RawMessage `json:"inputs"`
	}
	if err := json.Unmarshal([]byte(metafile), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	inputs := make([]string, 0, len(meta.Inputs))
	for k := range meta.Inputs {
		if isGlobalsModule(k) {
			continue
		}
		inputs = append(inputs, k)
	}
	sort.Strings(inputs)
	return inputs, nil
}
