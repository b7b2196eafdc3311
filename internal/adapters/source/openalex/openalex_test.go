package openalex_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"resurgence/internal/adapters/source/openalex"
	perr "resurgence/internal/platform/errors"
)

func TestGroupByAllPaginates(t *testing.T) {
	const total = 450 // 3 pages at 200 per page
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("group_by"); got != "publication_year" {
			t.Fatalf("expected group_by passed through, got %q", got)
		}
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			fmt.Sscanf(p, "%d", &page)
		}
		start := (page - 1) * 200
		end := start + 200
		if end > total {
			end = total
		}
		fmt.Fprintf(w, `{"meta":{"count":9000,"groups_count":%d},"group_by":[`, total)
		for i := start; i < end; i++ {
			if i > start {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"key":"k%d","count":%d}`, i, i)
		}
		fmt.Fprint(w, `]}`)
	}))
	defer srv.Close()

	c := openalex.New(srv.URL)
	p, err := c.GroupByAll(context.Background(), "concepts.id:C1", "publication_year")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.GroupBy) != total {
		t.Fatalf("expected %d buckets, got %d", total, len(p.GroupBy))
	}
	if p.Meta.GroupsCount != total {
		t.Fatalf("expected meta carried from the first page, got %d", p.Meta.GroupsCount)
	}
	if p.GroupBy[200].Key != "k200" {
		t.Fatalf("expected pages appended in order, got %q", p.GroupBy[200].Key)
	}
}

func TestGroupByServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := openalex.New(srv.URL).GroupBy(context.Background(), "f", "g", 1)
	if err == nil {
		t.Fatalf("expected an error on a 503")
	}
	if !perr.IsCode(err, perr.ErrorCodeExternalService) {
		t.Fatalf("expected external service code, got %v", err)
	}
}

func TestLoadOrFetchWritesThenHits(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	fetch := func(context.Context) (openalex.Payload, error) {
		calls++
		var p openalex.Payload
		p.Meta.Count = 7
		p.GroupBy = []openalex.Group{{Key: "2023", Count: 7}}
		return p, nil
	}

	p1, err := openalex.LoadOrFetch(context.Background(), dir, "total_ai", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, err := openalex.LoadOrFetch(context.Background(), dir, "total_ai", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one upstream call, got %d", calls)
	}
	if p1.Meta.Count != 7 || p2.Meta.Count != 7 {
		t.Fatalf("expected the cached payload back, got %+v and %+v", p1.Meta, p2.Meta)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one cache file, got %d", len(entries))
	}
	name := entries[0].Name()
	if filepath.Ext(name) != ".json" {
		t.Fatalf("expected a dated json cache, got %q", name)
	}
}

func TestLoadOrFetchPrefersNewest(t *testing.T) {
	dir := t.TempDir()
	old := `{"meta":{"count":1,"groups_count":0},"group_by":[]}`
	newer := `{"meta":{"count":2,"groups_count":0},"group_by":[]}`
	if err := os.WriteFile(filepath.Join(dir, "ct_ai_2024-01-05.json"), []byte(old), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ct_ai_2025-02-10.json"), []byte(newer), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := openalex.LoadOrFetch(context.Background(), dir, "ct_ai", func(context.Context) (openalex.Payload, error) {
		t.Fatalf("expected no upstream call on a cache hit")
		return openalex.Payload{}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Meta.Count != 2 {
		t.Fatalf("expected the newest cache file, got count %d", p.Meta.Count)
	}
}

func TestLoadOrFetchRefetchesCorruptCache(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ct_ai_2025-01-01.json"), []byte("{torn"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := 0
	p, err := openalex.LoadOrFetch(context.Background(), dir, "ct_ai", func(context.Context) (openalex.Payload, error) {
		calls++
		var p openalex.Payload
		p.Meta.Count = 3
		return p, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || p.Meta.Count != 3 {
		t.Fatalf("expected a refetch over the torn cache, got calls=%d count=%d", calls, p.Meta.Count)
	}
}
