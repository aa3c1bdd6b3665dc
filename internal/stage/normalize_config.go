package stage

import (
	"context"

	"github.com/flarebyte/lambundle/internal/config"
)

const normalizeConfigStage = "normalize-config"

func normalizeConfigRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	cfg, err := config.Normalize(in.Raw)
	if err != nil {
		return Envelope{}, fail(normalizeConfigStage, ErrConfiguration, err)
	}
	in.Config = cfg
	in.Files = append([]config.ExtraFile(nil), cfg.ExtraFiles...)
	return in, nil
}

func init() {
	Register(normalizeConfigStage, normalizeConfigRunner)
}
