// Synthesis: cross-layer summary figures from the processed artifacts
package main

import (
	"os"

	"resurgence/internal/pipeline"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
	"resurgence/internal/services/synthesis"
)

func main() {
	env, err := pipeline.Bootstrap("synthesis")
	if err != nil {
		logger.Get().Error().Err(err).Msg("bootstrap failed")
		os.Exit(perr.ExitCode(err))
	}

	svc, err := synthesis.New(synthesis.Options{Layout: env.Layout})
	if err == nil {
		err = svc.Run(env.Ctx)
	}
	if err != nil {
		logger.C(env.Ctx).Error().Err(err).Msg("stage failed")
		os.Exit(perr.ExitCode(err))
	}
}
