package stage

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/flarebyte/lambundle/internal/config"
	"github.com/flarebyte/lambundle/internal/install"
)

const installDependenciesStage = "install-dependencies"

// installDependenciesRunner installs into the target directory and queues its
// node_modules folder for packaging. No retries.
func installDependenciesRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	spec := in.Config.Install
	if spec == nil {
		return Envelope{}, fail(installDependenciesStage, ErrInstallation, errors.New("install section missing"))
	}
	inst := deps.Installer
	if inst == nil {
		inst = install.New()
	}
	res, err := inst.Install(ctx, *spec)
	if err != nil {
		return Envelope{}, fail(installDependenciesStage, ErrInstallation, err)
	}
	log.Debug().Str("dir", res.Dir).Msg("dependencies installed")
	in.Artifacts.InstallDir = res.Dir
	in.Files = append(in.Files, config.ExtraFile{Path: res.ModulesDir})
	return in, nil
}

func init() {
	Register(installDependenciesStage, installDependenciesRunner)
}
