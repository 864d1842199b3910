package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookmark/bookmarks"
	"bookmark/store"
)

// mapFetcher serves canned pages by address.
type mapFetcher map[string]string

func (f mapFetcher) Fetch(address string) ([]byte, error) {
	page, ok := f[address]
	if !ok {
		return nil, fmt.Errorf("fetching %s: not found", address)
	}
	return []byte(page), nil
}

func testBookmarks(t *testing.T, contents string) (*bookmarks.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bookmarks.json")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	bs, err := bookmarks.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return bs, path
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	defer func() { os.Stderr = old }()

	fn()

	w.Close()
	out, _ := io.ReadAll(r)
	return string(out)
}

func TestAddDuplicateWarnsWithoutSaving(t *testing.T) {
	bs, path := testBookmarks(t,
		`[{"href":"https://example.com/story","meta":{"posted":"2024-05-17T09:30:00Z"},"title":"A Story"}]`)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	st, err := store.New(t.TempDir(), mapFetcher{}, nil, true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	warning := captureStderr(t, func() {
		if err := cmdAdd(st, bs, "https://example.com/story"); err != nil {
			t.Errorf("cmdAdd returned %v for a duplicate", err)
		}
	})

	if !strings.Contains(warning, "already present") || !strings.Contains(warning, "A Story") {
		t.Errorf("warning = %q, want it to name the existing bookmark", warning)
	}
	if !strings.Contains(warning, "2024-05-17") {
		t.Errorf("warning = %q, want the posted date included", warning)
	}

	if bs.Len() != 1 {
		t.Errorf("collection grew to %d entries on a duplicate add", bs.Len())
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("duplicate add rewrote the bookmark file")
	}
}

func TestAddResolvesDiscussionPage(t *testing.T) {
	const (
		discussion = "https://news.ycombinator.com/item?id=12345"
		article    = "https://example.com/story"
	)
	f := mapFetcher{
		discussion: `<html><body><span class="titleline"><a href="` + article + `">The Story</a></span></body></html>`,
		article:    `<html><head><title>The Story</title></head></html>`,
	}

	bs, path := testBookmarks(t, "[]")
	st, err := store.New(t.TempDir(), f, nil, true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := cmdAdd(st, bs, discussion); err != nil {
		t.Fatalf("cmdAdd failed: %v", err)
	}

	b := bs.Find(article)
	if b == nil {
		t.Fatalf("article not bookmarked; have %v", bs.Bookmarks)
	}
	if b.Title != "The Story" {
		t.Errorf("title = %q, want the article's title", b.Title)
	}
	if b.Meta.Referer != discussion {
		t.Errorf("referer = %q, want the discussion page", b.Meta.Referer)
	}
	if b.Meta.Posted == nil {
		t.Error("posted timestamp not recorded")
	}
	if bs.Find(discussion) != nil {
		t.Error("discussion page bookmarked instead of the article")
	}

	// The persisted file carries the article href and the discussion referer.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), article) || !strings.Contains(string(data), discussion) {
		t.Errorf("persisted file missing resolution details:\n%s", data)
	}
}
