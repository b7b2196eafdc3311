package notes

import (
	"context"
	"time"

	"resurgence/internal/platform/logger"
	"resurgence/internal/platform/store"
)

// warehouse table for the monthly aggregates; one row per month per run
const monthlyDDL = `
CREATE TABLE IF NOT EXISTS notes_monthly (
    run_id            String,
    published_at      DateTime('UTC'),
    month             Date,
    notes             UInt64,
    active_authors    UInt64,
    notes_per_author  Float64,
    median_first_note_hours Float64
) ENGINE = MergeTree
ORDER BY (run_id, month)`

const monthlyInsert = `INSERT INTO notes_monthly (
    run_id, published_at, month, notes, active_authors, notes_per_author, median_first_note_hours)`

// publishMonthly writes the monthly series to the warehouse in one batch
func publishMonthly(ctx context.Context, cfg store.Config, runID string, monthly []MonthlyRow) error {
	wh, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = wh.Close() }()

	if err := wh.Exec(ctx, monthlyDDL); err != nil {
		return err
	}
	batch, err := wh.Batch(ctx, monthlyInsert)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, m := range monthly {
		if err := batch.Append(
			runID,
			now,
			m.Month.Start(),
			uint64(m.Notes),
			uint64(m.ActiveAuthors),
			m.NotesPerAuthor,
			m.MedianTimeToFirst,
		); err != nil {
			return err
		}
	}
	if err := batch.Send(); err != nil {
		return err
	}
	logger.C(ctx).Info().Int("rows", len(monthly)).Msg("published monthly aggregates")
	return nil
}
