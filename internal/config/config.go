package config

import (
	_ "embed"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource string

// PipelineConfig is the normalized, fully defaulted build configuration.
// It is produced once per invocation by Normalize and must be treated as read-only.
type PipelineConfig struct {
	ConfigVersion       string
	Entry               string
	ExportName          string
	Bundler             BundlerOptions
	Environment         map[string]any
	Minify              bool
	SourceMapName       string
	SourceMapOutputPath string
	ExcludedModules     []string
	Install             *InstallSpec
	ExtraFiles          []ExtraFile
	Filter              *Filter
	OutputPath          string
	Deploy              *DeploySpec
}

// BundlerOptions holds the settings handed to the bundler.
type BundlerOptions struct {
	Standalone       string
	Format           string
	Platform         string
	Target           string
	BrowserField     bool
	IgnoreMissing    bool
	DetectGlobals    bool
	InsertGlobalVars map[string]string
	Define           map[string]string
	// Unsupported lists keys supplied by the user that no bundler setting maps to.
	Unsupported []string
}

// InstallSpec describes the optional dependency installation.
type InstallSpec struct {
	Manifest string
	Target   string
	Image    string
	Engine   string
	Command  []string
}

// ExtraFile is either a filesystem path or an in-memory entry.
type ExtraFile struct {
	Path string
	Name string
	Data []byte
}

// IsPath reports whether the entry must be read from the filesystem.
func (f ExtraFile) IsPath() bool { return f.Path != "" }

// Filter holds an inline Lua predicate applied to directory entries.
type Filter struct {
	Inline string
}

// RemoteConfig holds the connection settings of the function host.
type RemoteConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Profile         string
	Endpoint        string
}

// DeploySpec describes the optional remote deployment.
type DeploySpec struct {
	Remote       RemoteConfig
	Name         string
	Role         string
	Runtime      string
	Timeout      int
	Memory       int
	Overwrite    bool
	Description  string
	Architecture string
	Publish      bool
}

// EntryName is the archive entry name of the bundled handler.
func (c PipelineConfig) EntryName() string {
	return filepath.Base(c.Entry)
}

// Handler returns the "<module>.<export>" reference used by the function host.
func (c PipelineConfig) Handler() string {
	base := c.EntryName()
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + c.ExportName
}

var knownBundlerKeys = map[string]bool{
	"standalone":       true,
	"format":           true,
	"platform":         true,
	"target":           true,
	"browserField":     true,
	"ignoreMissing":    true,
	"detectGlobals":    true,
	"insertGlobalVars": true,
	"define":           true,
}

// Normalize merges raw user options over the built-in defaults, validates the
// result and returns the populated configuration.
func Normalize(raw map[string]any) (PipelineConfig, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return PipelineConfig{}, err
	}
	user := ctx.Encode(normalizeValue(raw))
	if err := user.Err(); err != nil {
		return PipelineConfig{}, &ConfigError{Field: "", Constraint: ConstraintType, Err: err}
	}

	if err := requireStringField(user, "entry"); err != nil {
		return PipelineConfig{}, err
	}
	if err := requireStringField(user, "export"); err != nil {
		return PipelineConfig{}, err
	}

	v := schema.LookupPath(cue.ParsePath("#Options")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return PipelineConfig{}, fromCUEError(err, user)
	}

	var c PipelineConfig
	var err error
	if c.ConfigVersion, err = stringAt(v, "configVersion"); err != nil {
		return PipelineConfig{}, err
	}
	if !IsSupportedConfigVersion(c.ConfigVersion) {
		return PipelineConfig{}, &ConfigError{
			Field:      "configVersion",
			Constraint: ConstraintEnum,
			Err:        errUnsupportedVersion(c.ConfigVersion),
		}
	}
	if c.Entry, err = stringAt(v, "entry"); err != nil {
		return PipelineConfig{}, err
	}
	if c.ExportName, err = stringAt(v, "export"); err != nil {
		return PipelineConfig{}, err
	}
	if c.Bundler, err = parseBundlerSection(v, user); err != nil {
		return PipelineConfig{}, err
	}
	if c.Environment, err = parseEnvSection(v, user); err != nil {
		return PipelineConfig{}, err
	}
	if c.Minify, err = boolAt(v, "minify"); err != nil {
		return PipelineConfig{}, err
	}
	if present(user, "sourcemap") {
		if c.SourceMapName, err = stringAt(v, "sourcemap"); err != nil {
			return PipelineConfig{}, err
		}
	}
	if present(user, "sourcemapOutput") {
		if c.SourceMapOutputPath, err = stringAt(v, "sourcemapOutput"); err != nil {
			return PipelineConfig{}, err
		}
	}
	if c.ExcludedModules, err = stringsAt(v, "exclude"); err != nil {
		return PipelineConfig{}, err
	}
	if c.Install, err = parseInstallSection(v, user); err != nil {
		return PipelineConfig{}, err
	}
	if c.ExtraFiles, err = parseFilesSection(v); err != nil {
		return PipelineConfig{}, err
	}
	if present(user, "filter") {
		inline, err := stringAt(v, "filter.inline")
		if err != nil {
			return PipelineConfig{}, err
		}
		c.Filter = &Filter{Inline: inline}
	}
	if present(user, "output") {
		if c.OutputPath, err = stringAt(v, "output"); err != nil {
			return PipelineConfig{}, err
		}
	}
	if c.Deploy, err = parseDeploySection(v, user); err != nil {
		return PipelineConfig{}, err
	}

	if err := validateCrossFields(c); err != nil {
		return PipelineConfig{}, err
	}
	return c, nil
}

// validateCrossFields enforces dependencies between fields that the schema
// cannot express on its own.
func validateCrossFields(c PipelineConfig) error {
	if c.SourceMapName != "" && !c.Minify {
		return &ConfigError{Field: "sourcemap", Constraint: ConstraintRequires, Err: errRequires("minify to be true")}
	}
	if c.SourceMapOutputPath != "" && c.SourceMapName == "" {
		return &ConfigError{Field: "sourcemapOutput", Constraint: ConstraintRequires, Err: errRequires("sourcemap to be set")}
	}
	if c.Deploy != nil && c.Deploy.Memory%64 != 0 {
		return &ConfigError{Field: "deploy.memory", Constraint: ConstraintRange, Err: errMemoryMultiple(c.Deploy.Memory)}
	}
	return nil
}
