package paths_test

import (
	"os"
	"path/filepath"
	"testing"

	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/paths"
)

func TestResolveHonorsRootEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("RESURGENCE_ROOT", root)

	l, err := paths.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Root != root {
		t.Fatalf("expected root %s, got %s", root, l.Root)
	}
	if l.DataRaw != filepath.Join(root, "data", "raw") {
		t.Fatalf("unexpected raw dir: %s", l.DataRaw)
	}
	if l.DataProcessed != filepath.Join(root, "data", "processed") {
		t.Fatalf("unexpected processed dir: %s", l.DataProcessed)
	}
	if l.Figures != filepath.Join(root, "figures") {
		t.Fatalf("unexpected figures dir: %s", l.Figures)
	}
}

func TestResolveWalksUpToMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "data"), 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nested := filepath.Join(root, "cmd", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("RESURGENCE_ROOT", "")
	t.Chdir(nested)

	l, err := paths.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// macOS tempdirs resolve through symlinks, so compare the real paths
	wantRoot, _ := filepath.EvalSymlinks(root)
	gotRoot, _ := filepath.EvalSymlinks(l.Root)
	if gotRoot != wantRoot {
		t.Fatalf("expected the marker directory %s, got %s", wantRoot, gotRoot)
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	t.Setenv("RESURGENCE_ROOT", root)
	l, err := paths.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, d := range []string{l.DataRaw, l.DataProcessed, l.Figures} {
		st, err := os.Stat(d)
		if err != nil || !st.IsDir() {
			t.Fatalf("expected %s created, got %v", d, err)
		}
	}
}

func TestRequireFile(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "have.csv")
	if err := os.WriteFile(present, []byte("x"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := paths.RequireFile(present, ""); err != nil {
		t.Fatalf("expected nil for an existing file, got %v", err)
	}
	err := paths.RequireFile(filepath.Join(dir, "absent.csv"), "see README")
	if !perr.IsCode(err, perr.ErrorCodeMissingInput) {
		t.Fatalf("expected missing input code, got %v", err)
	}
}
