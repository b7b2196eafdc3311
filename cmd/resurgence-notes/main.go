// Annotation layer: streaming aggregation of the note-level dataset
package main

import (
	"os"

	"resurgence/internal/pipeline"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
	"resurgence/internal/platform/store"
	"resurgence/internal/services/notes"
)

func main() {
	env, err := pipeline.Bootstrap("notes")
	if err != nil {
		logger.Get().Error().Err(err).Msg("bootstrap failed")
		os.Exit(perr.ExitCode(err))
	}

	opts := notes.FromConfig(env.Layout, env.Cfg.MayInt("NOTES_CHUNK_SIZE", notes.DefaultChunkSize))
	opts.RunID = env.RunID
	opts.Sink = store.FromConfig(env.Cfg, "notes")

	svc, err := notes.New(opts)
	if err == nil {
		err = svc.Run(env.Ctx)
	}
	if err != nil {
		logger.C(env.Ctx).Error().Err(err).Msg("stage failed")
		os.Exit(perr.ExitCode(err))
	}
}
