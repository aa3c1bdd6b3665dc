package stage

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/flarebyte/lambundle/internal/deploy"
	"github.com/flarebyte/lambundle/internal/gitinfo"
)

const deployStage = "deploy"

func deployRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	spec := in.Config.Deploy
	if spec == nil {
		return Envelope{}, fail(deployStage, ErrDeployment, errors.New("deploy section missing"))
	}
	if len(in.Artifacts.Archive) == 0 {
		return Envelope{}, fail(deployStage, ErrDeployment, errors.New("no archive to deploy"))
	}
	newClient := deps.NewLambdaClient
	if newClient == nil {
		newClient = deploy.NewClient
	}
	client, err := newClient(ctx, spec.Remote)
	if err != nil {
		return Envelope{}, fail(deployStage, ErrDeployment, err)
	}
	s := *spec
	if s.Description == "" {
		describe := deps.Describe
		if describe == nil {
			describe = DefaultDescription
		}
		s.Description = describe(in.Config.Entry)
	}
	fn, err := deploy.New(client).Deploy(ctx, s, in.Config.Handler(), in.Artifacts.Archive)
	if err != nil {
		return Envelope{}, fail(deployStage, ErrDeployment, err)
	}
	in.Artifacts.Function = fn
	return in, nil
}

// DefaultDescription returns "lambundle <short sha>" when entry lives in a git
// work tree, and "" otherwise.
func DefaultDescription(entry string) string {
	info, err := gitinfo.Lookup(entry)
	if err != nil {
		if !errors.Is(err, gitinfo.ErrNotRepository) {
			log.Debug().Err(err).Msg("git lookup failed")
		}
		return ""
	}
	return "lambundle " + info.Short
}

func init() {
	Register(deployStage, deployRunner)
}
