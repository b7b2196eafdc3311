// Package pipeline sequences the analysis stages for the master runner
package pipeline

import (
	"context"

	"resurgence/internal/platform/config"
	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
	"resurgence/internal/platform/paths"
	"resurgence/internal/platform/store"
	"resurgence/internal/services/biblio"
	"resurgence/internal/services/notes"
	"resurgence/internal/services/robustness"
	"resurgence/internal/services/stratify"
	"resurgence/internal/services/synthesis"
	"resurgence/internal/services/trends"
)

// Stage is one runnable step of the pipeline. Core stages gate the exit
// status; supplementary stages are reported but never fail the run
type Stage struct {
	Name string
	Core bool
	Run  func(ctx context.Context) error
}

// Status of a finished stage
type Status int

const (
	StatusPass Status = iota
	StatusFail
	StatusSkip
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "[OK]"
	case StatusFail:
		return "[!!]"
	default:
		return "[--]"
	}
}

// Result records one stage outcome
type Result struct {
	Stage  string
	Status Status
	Err    error
}

// Stages builds the full stage list in execution order. Layer stages come
// first, then the supplementary analyses that read their outputs back
func Stages(cfg config.Conf, layout paths.Layout, runID string) ([]Stage, error) {
	trendsSvc, err := trends.New(trends.FromConfig(layout))
	if err != nil {
		return nil, err
	}

	biblioOpts := biblio.FromConfig(layout)
	biblioOpts.BaseURL = cfg.MayString("OPENALEX_BASE", "")
	biblioSvc, err := biblio.New(biblioOpts)
	if err != nil {
		return nil, err
	}

	notesOpts := notes.FromConfig(layout, cfg.MayInt("NOTES_CHUNK_SIZE", notes.DefaultChunkSize))
	notesOpts.RunID = runID
	notesOpts.Sink = store.FromConfig(cfg, "runall")
	notesSvc, err := notes.New(notesOpts)
	if err != nil {
		return nil, err
	}

	stratifyOpts := stratify.FromConfig(layout)
	stratifyOpts.BaseURL = cfg.MayString("OPENALEX_BASE", "")
	stratifySvc, err := stratify.New(stratifyOpts)
	if err != nil {
		return nil, err
	}

	robustnessSvc, err := robustness.New(robustness.FromConfig(layout))
	if err != nil {
		return nil, err
	}
	synthesisSvc, err := synthesis.New(synthesis.Options{Layout: layout})
	if err != nil {
		return nil, err
	}

	return []Stage{
		{Name: "trends", Core: true, Run: trendsSvc.Run},
		{Name: "biblio", Core: true, Run: biblioSvc.Run},
		{Name: "notes", Core: true, Run: notesSvc.Run},
		{Name: "stratify", Core: true, Run: stratifySvc.Run},
		{Name: "robustness", Core: false, Run: robustnessSvc.Run},
		{Name: "synthesis", Core: false, Run: synthesisSvc.Run},
	}, nil
}

// Run executes the stages in order. Stages named in skip are not run.
// Every stage is attempted regardless of earlier failures so one broken
// layer does not hide the state of the others
func Run(ctx context.Context, stages []Stage, skip []string) []Result {
	skipSet := make(map[string]struct{}, len(skip))
	for _, name := range skip {
		skipSet[name] = struct{}{}
	}

	results := make([]Result, 0, len(stages))
	for _, st := range stages {
		log := logger.Named(st.Name)
		if _, ok := skipSet[st.Name]; ok {
			log.Warn().Msg("stage skipped by configuration")
			results = append(results, Result{Stage: st.Name, Status: StatusSkip})
			continue
		}

		log.Info().Msg("stage starting")
		sctx := logger.WithRun(ctx, "", st.Name)
		if err := st.Run(sctx); err != nil {
			log.Error().Err(err).Msg("stage failed")
			results = append(results, Result{Stage: st.Name, Status: StatusFail, Err: err})
			continue
		}
		log.Info().Msg("stage complete")
		results = append(results, Result{Stage: st.Name, Status: StatusPass})
	}
	return results
}

// CorePassed reports whether every core stage passed (skips count as
// failures for core stages: the run is incomplete without them)
func CorePassed(stages []Stage, results []Result) bool {
	core := make(map[string]struct{})
	for _, st := range stages {
		if st.Core {
			core[st.Name] = struct{}{}
		}
	}
	for _, r := range results {
		if _, ok := core[r.Stage]; ok && r.Status != StatusPass {
			return false
		}
	}
	return true
}

// FirstErr returns the first core-stage error for exit-code mapping
func FirstErr(stages []Stage, results []Result) error {
	core := make(map[string]struct{})
	for _, st := range stages {
		if st.Core {
			core[st.Name] = struct{}{}
		}
	}
	for _, r := range results {
		if _, ok := core[r.Stage]; !ok {
			continue
		}
		if r.Err != nil {
			return r.Err
		}
		if r.Status == StatusSkip {
			return perr.Configf("core stage %s was skipped", r.Stage)
		}
	}
	return nil
}
