// Package bookmarks manages the persisted bookmark collection.
package bookmarks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"bookmark/store"
)

// Metadata carries the optional fields of a bookmark. Absent fields are
// omitted from the serialized form.
type Metadata struct {
	Posted  *time.Time `json:"posted,omitempty"`
	User    string     `json:"user,omitempty"`
	Referer string     `json:"referer,omitempty"`
}

// Bookmark is one saved address. The cache identifier is not a field: it is
// always derived from the address, so a stored hash can never go stale.
type Bookmark struct {
	Href  string   `json:"href"`
	Meta  Metadata `json:"meta"`
	Title string   `json:"title"`
}

// Identifier returns the cache identifier for this bookmark's address.
func (b *Bookmark) Identifier() string {
	return store.Hash(b.Href)
}

// Store holds the in-memory bookmark collection and the file it round-trips
// through. The file is read whole and rewritten whole on every run.
type Store struct {
	path      string
	Bookmarks []Bookmark
}

// Load reads the bookmark file. A missing or unparseable file is an error;
// the caller decides whether that is fatal.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var bookmarks []Bookmark
	if err := json.Unmarshal(data, &bookmarks); err != nil {
		return nil, fmt.Errorf("%s: could not parse json file: %w", path, err)
	}
	return &Store{path: path, Bookmarks: bookmarks}, nil
}

// Save rewrites the bookmark file through a temp file and rename, so a
// crash leaves either the old or the new complete file.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.Bookmarks, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".bookmarks-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// lessByPostedThenAddress is the collection's total order: posted-at
// ascending when both entries carry a timestamp, address order whenever
// either side lacks one. The fallback can interleave timed and untimed
// entries; it is kept for compatibility with existing bookmark files and
// isolated here so it can be revisited in one place.
func lessByPostedThenAddress(a, b Bookmark) bool {
	if a.Meta.Posted == nil || b.Meta.Posted == nil {
		return a.Href < b.Href
	}
	return a.Meta.Posted.Before(*b.Meta.Posted)
}

// Normalize drops duplicate addresses, keeping the first occurrence of
// each, then sorts the collection. Returns the number of entries removed.
func (s *Store) Normalize() int {
	seen := make(map[string]bool, len(s.Bookmarks))
	deduped := make([]Bookmark, 0, len(s.Bookmarks))
	for _, b := range s.Bookmarks {
		if seen[b.Href] {
			continue
		}
		seen[b.Href] = true
		deduped = append(deduped, b)
	}
	removed := len(s.Bookmarks) - len(deduped)

	sort.SliceStable(deduped, func(i, j int) bool {
		return lessByPostedThenAddress(deduped[i], deduped[j])
	})
	s.Bookmarks = deduped
	return removed
}

// Find returns the bookmark with the given address, or nil.
func (s *Store) Find(href string) *Bookmark {
	for i := range s.Bookmarks {
		if s.Bookmarks[i].Href == href {
			return &s.Bookmarks[i]
		}
	}
	return nil
}

// FindByIdentifier returns the bookmark whose recomputed identifier matches
// id, or nil.
func (s *Store) FindByIdentifier(id string) *Bookmark {
	for i := range s.Bookmarks {
		if s.Bookmarks[i].Identifier() == id {
			return &s.Bookmarks[i]
		}
	}
	return nil
}

// Add appends a bookmark to the collection.
func (s *Store) Add(b Bookmark) {
	s.Bookmarks = append(s.Bookmarks, b)
}

// Len returns the number of bookmarks.
func (s *Store) Len() int {
	return len(s.Bookmarks)
}
