package stage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

const writeOutputStage = "write-output"

func writeOutputRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	outPath := in.Config.OutputPath
	if outPath == "" {
		return Envelope{}, fail(writeOutputStage, ErrOutput, errors.New("output path missing"))
	}
	if dir := filepath.Dir(outPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Envelope{}, fail(writeOutputStage, ErrOutput, err)
		}
	}
	if err := os.WriteFile(outPath, in.Artifacts.Archive, 0o644); err != nil {
		return Envelope{}, fail(writeOutputStage, ErrOutput, err)
	}
	return in, nil
}

func init() {
	Register(writeOutputStage, writeOutputRunner)
}
