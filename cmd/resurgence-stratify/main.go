// Stratification layer: development-tier split of research output
package main

import (
	"os"

	"resurgence/internal/pipeline"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
	"resurgence/internal/services/stratify"
)

func main() {
	env, err := pipeline.Bootstrap("stratify")
	if err != nil {
		logger.Get().Error().Err(err).Msg("bootstrap failed")
		os.Exit(perr.ExitCode(err))
	}

	opts := stratify.FromConfig(env.Layout)
	opts.BaseURL = env.Cfg.MayString("OPENALEX_BASE", "")

	svc, err := stratify.New(opts)
	if err == nil {
		err = svc.Run(env.Ctx)
	}
	if err != nil {
		logger.C(env.Ctx).Error().Err(err).Msg("stage failed")
		os.Exit(perr.ExitCode(err))
	}
}
