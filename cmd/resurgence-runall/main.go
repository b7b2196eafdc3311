// Master runner: executes every layer in order, then the supplementary
// analyses, and reports the outcome per stage
package main

import (
	"os"

	"resurgence/internal/pipeline"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
)

func main() {
	env, err := pipeline.Bootstrap("runall")
	if err != nil {
		logger.Get().Error().Err(err).Msg("bootstrap failed")
		os.Exit(perr.ExitCode(err))
	}
	log := logger.C(env.Ctx)

	stages, err := pipeline.Stages(env.Cfg, env.Layout, env.RunID)
	if err != nil {
		log.Error().Err(err).Msg("stage construction failed")
		os.Exit(perr.ExitCode(err))
	}

	skip := env.Cfg.MayCSV("SKIP_STAGES", nil)
	results := pipeline.Run(env.Ctx, stages, skip)

	for _, r := range results {
		log.Info().Str("status", r.Status.String()).Str("stage", r.Stage).Msg("stage result")
	}

	if !pipeline.CorePassed(stages, results) {
		log.Error().Msg("core stages incomplete")
		os.Exit(perr.ExitCode(pipeline.FirstErr(stages, results)))
	}

	pipeline.Digest(env.Layout)
}
