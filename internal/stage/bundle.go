package stage

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/flarebyte/lambundle/internal/bundler"
)

const bundleStage = "bundle"

func bundleRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	for _, key := range in.Config.Bundler.Unsupported {
		log.Warn().Str("key", key).Msg("ignoring unsupported bundler option")
	}
	res, err := bundler.Bundle(ctx, in.Config)
	if err != nil {
		return Envelope{}, fail(bundleStage, ErrBundling, err)
	}
	for _, w := range res.Warnings {
		log.Warn().Msg(w)
	}
	in.Artifacts.Bundle = res.Code
	in.Artifacts.SourceMap = res.SourceMap
	in.Artifacts.Inputs = res.Inputs
	in.Artifacts.Warnings = append(in.Artifacts.Warnings, res.Warnings...)
	return in, nil
}

func init() {
	Register(bundleStage, bundleRunner)
}
