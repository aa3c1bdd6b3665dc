package stage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flarebyte/lambundle/internal/config"
)

// Plan returns the ordered stages activated by cfg, normalize-config first.
func Plan(cfg config.PipelineConfig) []string {
	stages := []string{normalizeConfigStage}
	if cfg.Install != nil {
		stages = append(stages, installDependenciesStage)
	}
	stages = append(stages, bundleStage, packageStage)
	if cfg.OutputPath != "" {
		stages = append(stages, writeOutputStage)
	}
	if cfg.Deploy != nil {
		stages = append(stages, deployStage)
	}
	return stages
}

// Truncate cuts stages after until. An empty until keeps every stage.
func Truncate(stages []string, until string) ([]string, error) {
	if until == "" {
		return stages, nil
	}
	for i, s := range stages {
		if s == until {
			return stages[:i+1], nil
		}
	}
	return nil, fmt.Errorf("stage %q is not part of the plan %v", until, stages)
}

// RunStages executes the named stages in order and stops at the first error.
// Completed stage names are appended to Envelope.Stages.
func RunStages(ctx context.Context, in Envelope, stages []string, deps Deps) (Envelope, error) {
	out := in
	for _, name := range stages {
		start := time.Now()
		log.Debug().Str("stage", name).Msg("stage started")
		next, err := Run(ctx, name, out, deps)
		if err != nil {
			log.Debug().Str("stage", name).Err(err).Msg("stage failed")
			return Envelope{}, err
		}
		next.Stages = append(slices.Clip(next.Stages), name)
		out = next
		log.Debug().Str("stage", name).Dur("elapsed", time.Since(start)).Msg("stage finished")
	}
	return out, nil
}

// Execute normalizes raw and runs the stages it activates, up to and including
// until when set.
func Execute(ctx context.Context, raw map[string]any, deps Deps, until string) (Envelope, error) {
	out, err := RunStages(ctx, Envelope{Raw: raw}, []string{normalizeConfigStage}, deps)
	if err != nil {
		return Envelope{}, err
	}
	plan := Plan(out.Config)
	for _, skipped := range skippedStages(plan) {
		log.Debug().Str("stage", skipped).Msg("stage not activated")
	}
	stages, err := Truncate(plan, until)
	if err != nil {
		return Envelope{}, err
	}
	return RunStages(ctx, out, stages[1:], deps)
}

func skippedStages(active []string) []string {
	on := map[string]bool{}
	for _, s := range active {
		on[s] = true
	}
	var out []string
	for _, s := range []string{installDependenciesStage, writeOutputStage, deployStage} {
		if !on[s] {
			out = append(out, s)
		}
	}
	return out
}
