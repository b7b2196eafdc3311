// Bibliometric layer: publication counts and the field-normalized ratio
package main

import (
	"os"

	"resurgence/internal/pipeline"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
	"resurgence/internal/services/biblio"
)

func main() {
	env, err := pipeline.Bootstrap("biblio")
	if err != nil {
		logger.Get().Error().Err(err).Msg("bootstrap failed")
		os.Exit(perr.ExitCode(err))
	}

	opts := biblio.FromConfig(env.Layout)
	opts.BaseURL = env.Cfg.MayString("OPENALEX_BASE", "")

	svc, err := biblio.New(opts)
	if err == nil {
		err = svc.Run(env.Ctx)
	}
	if err != nil {
		logger.C(env.Ctx).Error().Err(err).Msg("stage failed")
		os.Exit(perr.ExitCode(err))
	}
}
