package errors_test

import (
	stderrs "errors"
	"io/fs"
	"testing"

	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/testkit"
)

func TestExitCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{perr.MissingDataset("data/raw/x.csv", ""), 66},
		{perr.ExternalServicef("openalex 503"), 69},
		{perr.Configf("bad option"), 78},
		{perr.MalformedRowf("line 3"), 1},
		{stderrs.New("plain"), 1},
	}
	for _, c := range cases {
		if got := perr.ExitCode(c.err); got != c.want {
			t.Fatalf("expected exit %d for %v, got %d", c.want, c.err, got)
		}
	}
}

func TestCodeOfSurvivesWrapping(t *testing.T) {
	inner := perr.InsufficientDataf("only 4 periods")
	outer := perr.Wrapf(inner, perr.ErrorCodeUnknown, "english")
	wrapped := perr.Wrap(outer, perr.ErrorCodeIO, "stage failed")

	// As finds the outermost *Error, so the top code wins
	if !perr.IsCode(wrapped, perr.ErrorCodeIO) {
		t.Fatalf("expected the outermost code, got %v", perr.CodeOf(wrapped))
	}
	if perr.CodeOf(stderrs.New("plain")) != perr.ErrorCodeUnknown {
		t.Fatalf("expected Unknown for a foreign error")
	}
}

func TestRootFindsDeepestCause(t *testing.T) {
	cause := fs.ErrNotExist
	err := perr.Wrap(perr.Wrap(cause, perr.ErrorCodeIO, "open"), perr.ErrorCodeMissingInput, "dataset")
	if perr.Root(err) != cause {
		t.Fatalf("expected the deepest cause, got %v", perr.Root(err))
	}
	if !stderrs.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected errors.Is to see through the wrapping")
	}
}

func TestWithFieldCopyOnWrite(t *testing.T) {
	base := perr.MalformedRowf("bad value")
	tagged := perr.WithField(base, "hdi_2022")

	b, _ := perr.As(base)
	tg, _ := perr.As(tagged)
	if b.Field() != "" {
		t.Fatalf("expected the original untouched, got field %q", b.Field())
	}
	if tg.Field() != "hdi_2022" {
		t.Fatalf("expected the field attached, got %q", tg.Field())
	}

	plain := stderrs.New("plain")
	if perr.WithField(plain, "x") != plain {
		t.Fatalf("expected a foreign error passed through unchanged")
	}
}

func TestWithOp(t *testing.T) {
	err := perr.WithOp(perr.IOf("write failed"), "render.WriteCSV")
	e, ok := perr.As(err)
	if !ok || e.Op() != "render.WriteCSV" {
		t.Fatalf("expected the op label attached, got %+v", e)
	}
}

func TestWrapIf(t *testing.T) {
	if perr.WrapIf(nil, perr.ErrorCodeIO, "noop") != nil {
		t.Fatalf("expected nil passthrough")
	}
	err := perr.WrapIf(stderrs.New("boom"), perr.ErrorCodeIO, "copy")
	if !perr.IsCode(err, perr.ErrorCodeIO) {
		t.Fatalf("expected the IO code, got %v", err)
	}
}

func TestMissingDatasetHint(t *testing.T) {
	err := perr.MissingDataset("data/raw/notes.csv", "curl -O https://example.org/notes.zip")
	testkit.MustContain(t, err.Error(), "data/raw/notes.csv")
	testkit.MustContain(t, err.Error(), "curl -O")

	bare := perr.MissingDataset("data/raw/notes.csv", "")
	if bare.Error() != "missing input dataset: data/raw/notes.csv" {
		t.Fatalf("unexpected message: %q", bare.Error())
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := perr.Wrap(stderrs.New("disk full"), perr.ErrorCodeIO, "publish")
	if err.Error() != "publish: disk full" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	var nilErr *perr.Error
	if nilErr.Error() != "<nil>" {
		t.Fatalf("expected the nil guard")
	}
}
