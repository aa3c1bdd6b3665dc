// Package container runs one-shot commands inside Docker or Podman containers.
package container

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Engine defines the container operations used by the build.
type Engine interface {
	// Name returns the engine name (docker or podman)
	Name() string
	// Available checks if the engine is available on the system
	Available() bool
	// Version returns the engine version
	Version(ctx context.Context) (string, error)
	// Run runs a command in a container and waits for it to exit
	Run(ctx context.Context, opts RunOptions) (*RunResult, error)
}

// RunOptions contains options for running a container
type RunOptions struct {
	Image   string
	Command []string
	// WorkDir is the working directory inside the container
	WorkDir string
	Env     map[string]string
	// Volumes are volume mounts in "host:container[:ro]" format
	Volumes []string
	// Remove automatically removes the container after exit
	Remove bool
	Stdout io.Writer
	Stderr io.Writer
}

// RunResult contains the result of running a container
type RunResult struct {
	ExitCode int
	// Stderr holds the end of the error output; earlier bytes are dropped
	// past a fixed size.
	Stderr string
	// Error is set when the engine binary could not be started
	Error error
}

// ExitError reports a container command that ran and exited non-zero.
type ExitError struct {
	Engine string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s run exited with code %d: %s", e.Engine, e.Code, strings.TrimSpace(e.Stderr))
}

// Err returns the failure carried by r, or nil when the command succeeded.
func (r *RunResult) Err(engine string) error {
	if r.Error != nil {
		return r.Error
	}
	if r.ExitCode != 0 {
		return &ExitError{Engine: engine, Code: r.ExitCode, Stderr: r.Stderr}
	}
	return nil
}

// EngineType identifies the container engine type
type EngineType string

const (
	EngineTypeAuto   EngineType = "auto"
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"
)

// ErrEngineNotAvailable is returned when a container engine is not available
type ErrEngineNotAvailable struct {
	Engine string
	Reason string
}

func (e *ErrEngineNotAvailable) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// NewEngine returns the preferred engine, falling back to the other one.
func NewEngine(preferred EngineType, opts ...Option) (Engine, error) {
	switch preferred {
	case EngineTypeAuto, "":
		return AutoDetectEngine(opts...)
	case EngineTypePodman:
		if e := NewPodmanEngine(opts...); e.Available() {
			return e, nil
		}
		if e := NewDockerEngine(opts...); e.Available() {
			return e, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "podman",
			Reason: "podman is not installed or not accessible, and docker fallback is also not available",
		}
	case EngineTypeDocker:
		if e := NewDockerEngine(opts...); e.Available() {
			return e, nil
		}
		if e := NewPodmanEngine(opts...); e.Available() {
			return e, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "docker",
			Reason: "docker is not installed or not accessible, and podman fallback is also not available",
		}
	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferred)
	}
}

// AutoDetectEngine returns docker when available, then podman.
func AutoDetectEngine(opts ...Option) (Engine, error) {
	if e := NewDockerEngine(opts...); e.Available() {
		return e, nil
	}
	if e := NewPodmanEngine(opts...); e.Available() {
		return e, nil
	}
	return nil, &ErrEngineNotAvailable{
		Engine: "any",
		Reason: "no container engine (docker or podman) is available on this system",
	}
}
