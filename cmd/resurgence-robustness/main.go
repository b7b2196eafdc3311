// Robustness checks: placebo boundaries, pre-trends and effect sizes
package main

import (
	"os"

	"resurgence/internal/pipeline"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
	"resurgence/internal/services/robustness"
)

func main() {
	env, err := pipeline.Bootstrap("robustness")
	if err != nil {
		logger.Get().Error().Err(err).Msg("bootstrap failed")
		os.Exit(perr.ExitCode(err))
	}

	svc, err := robustness.New(robustness.FromConfig(env.Layout))
	if err == nil {
		err = svc.Run(env.Ctx)
	}
	if err != nil {
		logger.C(env.Ctx).Error().Err(err).Msg("stage failed")
		os.Exit(perr.ExitCode(err))
	}
}
