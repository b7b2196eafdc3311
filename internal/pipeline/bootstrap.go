package pipeline

import (
	"context"

	"resurgence/internal/platform/config"
	"resurgence/internal/platform/logger"
	"resurgence/internal/platform/paths"

	"github.com/google/uuid"
)

// Env is the shared bootstrap state of a stage binary
type Env struct {
	Cfg    config.Conf
	Layout paths.Layout
	RunID  string
	Ctx    context.Context
}

// Bootstrap prepares logging, configuration and the directory layout for a
// stage binary. The returned context carries the run id and stage name
func Bootstrap(stage string) (Env, error) {
	logger.Get() // force init from env before anything logs

	cfg := config.New().Prefix("RESURGENCE_")
	layout, err := paths.Resolve()
	if err != nil {
		return Env{}, err
	}
	if err := layout.EnsureDirs(); err != nil {
		return Env{}, err
	}

	runID := uuid.NewString()
	ctx := logger.WithRun(context.Background(), runID, stage)
	logger.C(ctx).Info().Str("root", layout.Root).Msg("layout resolved")

	return Env{Cfg: cfg, Layout: layout, RunID: runID, Ctx: ctx}, nil
}
