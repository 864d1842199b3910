// Package store implements the content-addressed page cache.
// Each fetched page is kept on disk under a hash of its URL, with an
// optional embedding-vector sidecar next to it.
package store

import (
	"crypto/sha1"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EmbeddingsSuffix is appended to a cache entry's identifier to name its
// embedding sidecar file.
const EmbeddingsSuffix = ".embeddings"

// Hash maps a URL to its cache identifier. The identifier is stable across
// runs and safe to use as a filename on case-insensitive filesystems.
func Hash(address string) string {
	sum := sha1.Sum([]byte(address))
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
}

// Fetcher retrieves a page over the network.
type Fetcher interface {
	Fetch(address string) ([]byte, error)
}

// Embedder computes an embedding vector for a fetched document.
type Embedder interface {
	EmbedDocument(content []byte) ([]float64, error)
}

// UrlStore is the content-addressed cache. A cached entry is authoritative:
// once a URL has been fetched, later calls return the stored bytes without
// touching the network. The archive is accretive, entries are never
// refreshed or deleted.
type UrlStore struct {
	dir      string
	fetcher  Fetcher
	embedder Embedder // nil when search is disabled
	persist  bool
}

// DataDir returns the cache directory, honouring XDG_DATA_HOME. The config
// package resolves its default bookmark path against the same directory.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "bookmark"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "bookmark"), nil
}

// New creates a UrlStore rooted at dir, creating the directory if needed.
// An empty dir selects the default data directory. When persist is false
// the store fetches but never writes, and embedder is ignored.
func New(dir string, fetcher Fetcher, embedder Embedder, persist bool) (*UrlStore, error) {
	if dir == "" {
		d, err := DataDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}
	return &UrlStore{dir: dir, fetcher: fetcher, embedder: embedder, persist: persist}, nil
}

// Dir returns the cache directory.
func (s *UrlStore) Dir() string {
	return s.dir
}

// Fetch returns the page content for address, from cache when present.
// On a miss it fetches through the configured backend, persists the
// content under the identifier, and then writes the embedding sidecar.
// The two writes are independent: a missing sidecar is repaired later by
// ReembedMissing, never by refetching.
func (s *UrlStore) Fetch(address string) ([]byte, error) {
	id := Hash(address)
	path := filepath.Join(s.dir, id)

	if content, err := os.ReadFile(path); err == nil {
		return content, nil
	}

	content, err := s.fetcher.Fetch(address)
	if err != nil {
		return nil, err
	}

	if !s.persist {
		return content, nil
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return nil, fmt.Errorf("caching %s: %w", address, err)
	}
	if s.embedder != nil {
		if err := s.writeEmbedding(id, content); err != nil {
			return nil, err
		}
	}
	return content, nil
}

func (s *UrlStore) writeEmbedding(id string, content []byte) error {
	vector, err := s.embedder.EmbedDocument(content)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", id, err)
	}
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encoding embedding %s: %w", id, err)
	}
	path := filepath.Join(s.dir, id+EmbeddingsSuffix)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing embedding %s: %w", id, err)
	}
	return nil
}

// Embedding pairs a cache identifier with its stored vector.
type Embedding struct {
	Identifier string
	Vector     []float64
}

// Embeddings loads every persisted sidecar vector in the cache.
func (s *UrlStore) Embeddings() ([]Embedding, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading cache dir: %w", err)
	}

	var embeddings []Embedding
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, EmbeddingsSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading embedding %s: %w", name, err)
		}
		var vector []float64
		if err := json.Unmarshal(data, &vector); err != nil {
			return nil, fmt.Errorf("decoding embedding %s: %w", name, err)
		}
		embeddings = append(embeddings, Embedding{
			Identifier: strings.TrimSuffix(name, EmbeddingsSuffix),
			Vector:     vector,
		})
	}
	return embeddings, nil
}

// Embedding returns the stored vector for one identifier, or nil when the
// entry has no sidecar.
func (s *UrlStore) Embedding(id string) ([]float64, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+EmbeddingsSuffix))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading embedding %s: %w", id, err)
	}
	var vector []float64
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, fmt.Errorf("decoding embedding %s: %w", id, err)
	}
	return vector, nil
}

// ReembedMissing computes sidecars for cached pages that lack one, for
// example after a crash between the content and embedding writes, or after
// enabling search on an existing cache. Returns the number written.
func (s *UrlStore) ReembedMissing() (int, error) {
	if s.embedder == nil {
		return 0, fmt.Errorf("no embedder configured")
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading cache dir: %w", err)
	}

	written := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, EmbeddingsSuffix) {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, name+EmbeddingsSuffix)); err == nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return written, fmt.Errorf("reading cache entry %s: %w", name, err)
		}
		if err := s.writeEmbedding(name, content); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
