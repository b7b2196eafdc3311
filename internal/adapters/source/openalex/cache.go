package openalex

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
)

var datedName = regexp.MustCompile(`_(\d{4}-\d{2}-\d{2})\.json$`)

// LoadOrFetch returns the newest dated cache {prefix}_YYYY-MM-DD.json under
// dir, or runs fetch and writes today's file on a miss. Cache writes go
// through a .part rename so a crash never leaves a torn file
func LoadOrFetch(ctx context.Context, dir, prefix string, fetch func(context.Context) (Payload, error)) (Payload, error) {
	if path := latestDated(dir, prefix); path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			var p Payload
			if err := json.Unmarshal(raw, &p); err == nil {
				logger.C(ctx).Debug().Str("cache", path).Msg("openalex cache hit")
				return p, nil
			}
		}
		// unreadable cache falls through to a refetch
		logger.C(ctx).Warn().Str("cache", path).Msg("openalex cache unreadable; refetching")
	}

	p, err := fetch(ctx)
	if err != nil {
		return Payload{}, err
	}
	if err := writeDated(dir, prefix, p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func latestDated(dir, prefix string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	type dated struct{ day, path string }
	var found []dated
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) < len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		m := datedName.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		found = append(found, dated{day: m[1], path: filepath.Join(dir, name)})
	}
	if len(found) == 0 {
		return ""
	}
	sort.Slice(found, func(i, j int) bool { return found[i].day < found[j].day })
	return found[len(found)-1].path
}

func writeDated(dir, prefix string, p Payload) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "create %s", dir)
	}
	path := filepath.Join(dir, prefix+"_"+time.Now().UTC().Format("2006-01-02")+".json")
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeIO, "encode openalex cache")
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "publish %s", path)
	}
	return nil
}
