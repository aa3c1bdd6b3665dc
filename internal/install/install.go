// Package install runs a package manager inside a container so that native
// dependencies are compiled for the function host.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/flarebyte/lambundle/internal/config"
	"github.com/flarebyte/lambundle/internal/container"
)

const (
	manifestMount = "/var/manifest"
	taskMount     = "/var/task"
	modulesDir    = "node_modules"
)

var lockFiles = []string{"package-lock.json", "npm-shrinkwrap.json", "yarn.lock", "pnpm-lock.yaml"}

// Installer installs the dependencies described by an InstallSpec.
type Installer interface {
	Install(ctx context.Context, spec config.InstallSpec) (Result, error)
}

// Result locates the installed dependencies on the host.
type Result struct {
	// Dir is the install target directory.
	Dir string
	// ModulesDir is Dir/node_modules.
	ModulesDir string
}

// EngineFactory resolves a container engine by name ("auto", "docker", "podman").
type EngineFactory func(name string) (container.Engine, error)

// ContainerInstaller runs the install command in a throwaway container.
type ContainerInstaller struct {
	NewEngine EngineFactory
	// TempDir is the parent of generated target directories; os.TempDir when empty.
	TempDir string
}

// New returns an installer backed by the local docker or podman CLI.
func New() *ContainerInstaller {
	return &ContainerInstaller{
		NewEngine: func(name string) (container.Engine, error) {
			return container.NewEngine(container.EngineType(name))
		},
	}
}

func (ci *ContainerInstaller) Install(ctx context.Context, spec config.InstallSpec) (Result, error) {
	manifest, err := filepath.Abs(spec.Manifest)
	if err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(manifest); err != nil {
		return Result{}, err
	}
	target, err := ci.targetDir(spec.Target)
	if err != nil {
		return Result{}, err
	}
	engine, err := ci.NewEngine(spec.Engine)
	if err != nil {
		return Result{}, err
	}

	opts := container.RunOptions{
		Image:   spec.Image,
		Command: []string{"sh", "-c", Script(manifest, spec.Command)},
		WorkDir: taskMount,
		Volumes: []string{
			filepath.Dir(manifest) + ":" + manifestMount + ":ro",
			target + ":" + taskMount,
		},
		Remove: true,
	}
	log.Debug().
		Str("engine", engine.Name()).
		Str("image", spec.Image).
		Str("target", target).
		Strs("command", spec.Command).
		Msg("running dependency install")

	res, err := engine.Run(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	if err := res.Err(engine.Name()); err != nil {
		return Result{}, err
	}

	mods := filepath.Join(target, modulesDir)
	if _, err := os.Stat(mods); err != nil {
		return Result{}, err
	}
	return Result{Dir: target, ModulesDir: mods}, nil
}

func (ci *ContainerInstaller) targetDir(target string) (string, error) {
	if target == "" {
		parent := ci.TempDir
		if parent == "" {
			parent = os.TempDir()
		}
		target = filepath.Join(parent, "lambundle-install-"+uuid.NewString())
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

// Script builds the shell snippet that copies the manifest (and any lock file
// next to it) into the task directory before running command.
func Script(manifest string, command []string) string {
	dir := filepath.Dir(manifest)
	steps := []string{fmt.Sprintf("cp %s %s/package.json", quote(manifestMount+"/"+filepath.Base(manifest)), taskMount)}
	for _, lock := range lockFiles {
		if _, err := os.Stat(filepath.Join(dir, lock)); err == nil {
			steps = append(steps, fmt.Sprintf("cp %s %s/", quote(manifestMount+"/"+lock), taskMount))
		}
	}
	quoted := make([]string, len(command))
	for i, c := range command {
		quoted[i] = quote(c)
	}
	steps = append(steps, strings.Join(quoted, " "))
	return strings.Join(steps, " && ")
}

func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>(){}*?!#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// IsMissingModules reports whether err comes from an install that produced no
// node_modules directory.
func IsMissingModules(err error) bool {
	var pe *os.PathError
	return errors.As(err, &pe) && filepath.Base(pe.Path) == modulesDir && errors.Is(err, os.ErrNotExist)
}
