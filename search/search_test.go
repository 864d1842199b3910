package search

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"bookmark/bookmarks"
	"bookmark/store"
)

func writeSidecar(t *testing.T, dir, address string, vector []float64) {
	t.Helper()
	data, err := json.Marshal(vector)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, store.Hash(address)+store.EmbeddingsSuffix)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func testStore(t *testing.T, dir string) *store.UrlStore {
	t.Helper()
	st, err := store.New(dir, nil, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestCosine(t *testing.T) {
	cases := []struct {
		a, b []float64
		want float64
	}{
		{[]float64{1, 0}, []float64{1, 0}, 1},
		{[]float64{1, 0}, []float64{0, 1}, 0},
		{[]float64{1, 0}, []float64{-1, 0}, -1},
		{[]float64{3, 4}, []float64{3, 4}, 1},
	}
	for _, c := range cases {
		got := Cosine(c.a, c.b)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Cosine(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestCosineZeroVector(t *testing.T) {
	// Zero vectors are undefined, not clamped.
	if got := Cosine([]float64{0, 0}, []float64{1, 0}); !math.IsNaN(got) {
		t.Errorf("Cosine with zero vector = %v, want NaN", got)
	}
}

func TestSearchRanking(t *testing.T) {
	dir := t.TempDir()
	writeSidecar(t, dir, "https://a.example", []float64{1, 0})
	writeSidecar(t, dir, "https://b.example", []float64{0, 1})
	writeSidecar(t, dir, "https://c.example", []float64{1, 0})

	bs := &bookmarks.Store{Bookmarks: []bookmarks.Bookmark{
		{Href: "https://a.example", Title: "a"},
		{Href: "https://b.example", Title: "b"},
		{Href: "https://c.example", Title: "c"},
	}}

	results, err := Search(testStore(t, dir), bs, []float64{1, 0}, DefaultTopK)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	// The two identical-direction vectors rank above the orthogonal one.
	for _, r := range results[:2] {
		if r.Bookmark.Href == "https://b.example" {
			t.Error("orthogonal vector ranked in the top two")
		}
		if math.Abs(r.Score-1.0) > 1e-9 {
			t.Errorf("top score = %v, want 1.0", r.Score)
		}
	}
	last := results[2]
	if last.Bookmark.Href != "https://b.example" || math.Abs(last.Score) > 1e-9 {
		t.Errorf("last result = %s score %v, want b.example at 0.0", last.Bookmark.Href, last.Score)
	}
}

func TestSearchTopK(t *testing.T) {
	dir := t.TempDir()
	var marks []bookmarks.Bookmark
	addresses := []string{"https://a.example", "https://b.example", "https://c.example",
		"https://d.example", "https://e.example", "https://f.example", "https://g.example"}
	for i, a := range addresses {
		writeSidecar(t, dir, a, []float64{1, float64(i)})
		marks = append(marks, bookmarks.Bookmark{Href: a, Title: a})
	}
	bs := &bookmarks.Store{Bookmarks: marks}

	results, err := Search(testStore(t, dir), bs, []float64{1, 0}, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != DefaultTopK {
		t.Errorf("expected %d results with default k, got %d", DefaultTopK, len(results))
	}

	results, _ = Search(testStore(t, dir), bs, []float64{1, 0}, 2)
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestSearchSkipsOrphans(t *testing.T) {
	dir := t.TempDir()
	writeSidecar(t, dir, "https://known.example", []float64{1, 0})
	writeSidecar(t, dir, "https://orphan.example", []float64{1, 0})

	bs := &bookmarks.Store{Bookmarks: []bookmarks.Bookmark{
		{Href: "https://known.example", Title: "known"},
	}}

	results, err := Search(testStore(t, dir), bs, []float64{1, 0}, DefaultTopK)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Bookmark.Href != "https://known.example" {
		t.Errorf("unexpected result %q", results[0].Bookmark.Href)
	}
}

func TestSimilar(t *testing.T) {
	dir := t.TempDir()
	writeSidecar(t, dir, "https://a.example", []float64{1, 0})
	writeSidecar(t, dir, "https://b.example", []float64{1, 0.1})
	writeSidecar(t, dir, "https://c.example", []float64{0, 1})

	bs := &bookmarks.Store{Bookmarks: []bookmarks.Bookmark{
		{Href: "https://a.example", Title: "a"},
		{Href: "https://b.example", Title: "b"},
		{Href: "https://c.example", Title: "c"},
	}}

	results, err := Similar(testStore(t, dir), bs, store.Hash("https://a.example"), DefaultTopK)
	if err != nil {
		t.Fatalf("Similar failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (self excluded), got %d", len(results))
	}
	if results[0].Bookmark.Href != "https://b.example" {
		t.Errorf("nearest = %q, want b.example", results[0].Bookmark.Href)
	}
}

func TestSimilarNoEmbedding(t *testing.T) {
	bs := &bookmarks.Store{}
	_, err := Similar(testStore(t, t.TempDir()), bs, "NOSUCHID", DefaultTopK)

	var noEmb *NoEmbeddingError
	if !errors.As(err, &noEmb) {
		t.Fatalf("expected NoEmbeddingError, got %v", err)
	}
	if noEmb.Identifier != "NOSUCHID" {
		t.Errorf("error does not carry the identifier: %v", noEmb)
	}
}
