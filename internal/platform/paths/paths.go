// Package paths resolves the project data layout relative to the project root
package paths

import (
	"os"
	"path/filepath"

	"resurgence/internal/platform/config/raw"
	perr "resurgence/internal/platform/errors"
)

// Layout holds the resolved data directories for a run
type Layout struct {
	Root          string
	DataRaw       string
	DataProcessed string
	Figures       string
}

// Resolve locates the project root and derives the layout.
// RESURGENCE_ROOT wins when set; otherwise walk upward from the working
// directory until a directory containing data/ or go.mod is found
func Resolve() (Layout, error) {
	if r := raw.New().Get("RESURGENCE_ROOT", ""); r != "" {
		return fromRoot(r), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return Layout{}, perr.Wrap(err, perr.ErrorCodeIO, "resolve working directory")
	}
	dir := wd
	for {
		if isRoot(dir) {
			return fromRoot(dir), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// no marker found anywhere above; anchor at the working directory
			return fromRoot(wd), nil
		}
		dir = parent
	}
}

func isRoot(dir string) bool {
	if st, err := os.Stat(filepath.Join(dir, "data")); err == nil && st.IsDir() {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return true
	}
	return false
}

func fromRoot(root string) Layout {
	return Layout{
		Root:          root,
		DataRaw:       filepath.Join(root, "data", "raw"),
		DataProcessed: filepath.Join(root, "data", "processed"),
		Figures:       filepath.Join(root, "figures"),
	}
}

// EnsureDirs creates the writable directories if absent
func (l Layout) EnsureDirs() error {
	for _, d := range []string{l.DataRaw, l.DataProcessed, l.Figures} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeIO, "create %s", d)
		}
	}
	return nil
}

// RequireFile returns a MissingInput error when path does not exist.
// fetchHint tells the operator how to retrieve the dataset
func RequireFile(path, fetchHint string) error {
	if _, err := os.Stat(path); err != nil {
		return perr.MissingDataset(path, fetchHint)
	}
	return nil
}
