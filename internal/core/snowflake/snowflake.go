// Package snowflake decodes creation instants from 64-bit platform
// identifiers whose top 41 bits carry milliseconds since the platform epoch
package snowflake

import (
	"time"

	perr "resurgence/internal/platform/errors"
)

// EpochMs is the platform epoch (2010-11-04T01:42:54.657Z) in Unix millis
const EpochMs int64 = 1288834974657

// CreationMs returns the identifier's embedded creation time in Unix millis.
// The shift is done on the unsigned bit pattern so the sign bit cannot leak
// into the timestamp
func CreationMs(id int64) int64 {
	return int64(uint64(id)>>22) + EpochMs
}

// CreationTime returns the identifier's creation instant in UTC
func CreationTime(id int64) time.Time {
	ms := CreationMs(id)
	return time.UnixMilli(ms).UTC()
}

// FromTime composes an identifier whose embedded instant is t, with zeroed
// worker and sequence bits. Millisecond precision; used to build fixtures
// and to round-trip decode checks
func FromTime(t time.Time) (int64, error) {
	ms := t.UnixMilli() - EpochMs
	if ms < 0 {
		return 0, perr.Decodef("instant %s precedes platform epoch", t.UTC().Format(time.RFC3339))
	}
	if ms >= 1<<41 {
		return 0, perr.Decodef("instant %s overflows 41-bit timestamp", t.UTC().Format(time.RFC3339))
	}
	return int64(uint64(ms) << 22), nil
}
