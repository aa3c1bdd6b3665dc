// Package lambundle packages a single handler module into a deployable zip
// archive for AWS Lambda, optionally installing dependencies in a container,
// minifying, writing the archive to disk and deploying it.
package lambundle

import (
	"context"

	"github.com/flarebyte/lambundle/internal/deploy"
	"github.com/flarebyte/lambundle/internal/install"
	"github.com/flarebyte/lambundle/internal/stage"
)

// Error kinds reported by Bundle.
var (
	ErrConfiguration = stage.ErrConfiguration
	ErrInstallation  = stage.ErrInstallation
	ErrBundling      = stage.ErrBundling
	ErrPackaging     = stage.ErrPackaging
	ErrOutput        = stage.ErrOutput
	ErrDeployment    = stage.ErrDeployment
)

// Error names the failed stage; errors.Unwrap returns the underlying cause.
type Error = stage.Error

// FunctionMetadata describes the function created by a deployment.
type FunctionMetadata = deploy.FunctionMetadata

// Artifacts holds the side outputs of a build.
type Artifacts struct {
	// SourceMap is set when a source map name was configured.
	SourceMap *string
	// Function is set when the deploy section was present.
	Function *FunctionMetadata
}

// Result is returned by a successful Bundle call.
type Result struct {
	Archive   []byte
	Artifacts Artifacts
	// InstallDir is the dependency install directory, if installation ran.
	// Removing it is up to the caller.
	InstallDir string
}

// Option customizes the collaborators used by Bundle.
type Option func(*stage.Deps)

// WithLambdaClientFactory replaces the AWS Lambda client used for deployment.
func WithLambdaClientFactory(f deploy.ClientFactory) Option {
	return func(d *stage.Deps) { d.NewLambdaClient = f }
}

// WithInstaller replaces the container-based dependency installer.
func WithInstaller(i install.Installer) Option {
	return func(d *stage.Deps) { d.Installer = i }
}

// WithDescription sets the function computing the default deploy description
// from the entry path.
func WithDescription(f func(entry string) string) Option {
	return func(d *stage.Deps) { d.Describe = f }
}

// Bundle runs the whole pipeline for options. Errors match one of the stage
// Err* kinds with errors.Is.
// No partial result is returned on failure.
func Bundle(ctx context.Context, options map[string]any, opts ...Option) (*Result, error) {
	var deps stage.Deps
	for _, o := range opts {
		o(&deps)
	}
	out, err := stage.Execute(ctx, options, deps, "")
	if err != nil {
		return nil, err
	}
	return &Result{
		Archive: out.Artifacts.Archive,
		Artifacts: Artifacts{
			SourceMap: out.Artifacts.SourceMap,
			Function:  out.Artifacts.Function,
		},
		InstallDir: out.Artifacts.InstallDir,
	}, nil
}
