package stage

import (
	"context"
	"errors"

	"github.com/flarebyte/lambundle/internal/archive"
	"github.com/flarebyte/lambundle/internal/luafilter"
)

const packageStage = "package"

func packageRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	if in.Artifacts.Bundle == nil {
		return Envelope{}, fail(packageStage, ErrPackaging, errors.New("no bundle to package"))
	}
	var filter archive.Filter
	if f := in.Config.Filter; f != nil {
		p, err := luafilter.Compile(f.Inline)
		if err != nil {
			return Envelope{}, fail(packageStage, ErrPackaging, err)
		}
		defer p.Close()
		filter = p
	}
	data, err := archive.Build(in.Config.EntryName(), in.Artifacts.Bundle, in.Files, filter)
	if err != nil {
		return Envelope{}, fail(packageStage, ErrPackaging, err)
	}
	in.Artifacts.Archive = data
	return in, nil
}

func init() {
	Register(packageStage, packageRunner)
}
