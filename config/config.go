// Package config provides YAML configuration loading for bookmark.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Renderer settings for the external headless renderer.
type Renderer struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // empty = "chromium" from PATH
}

// Fetcher settings for direct HTTP retrieval.
type Fetcher struct {
	UserAgent      string `yaml:"user_agent,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Embeddings settings for the vector endpoint.
type Embeddings struct {
	Host  string `yaml:"host,omitempty"`
	Model string `yaml:"model,omitempty"`
}

// Config is the main configuration struct.
type Config struct {
	Bookmarks     string     `yaml:"bookmarks"`
	StoreArticles bool       `yaml:"store_articles"`
	Search        bool       `yaml:"search"`
	Renderer      Renderer   `yaml:"renderer"`
	Fetcher       Fetcher    `yaml:"fetcher"`
	Embeddings    Embeddings `yaml:"embeddings"`
}

// configDir returns the configuration directory, honouring XDG_CONFIG_HOME.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bookmark"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "bookmark"), nil
}

// ConfigPath returns the path to the user's config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// dataDir returns the default data directory, honouring XDG_DATA_HOME.
// Must resolve to the same directory as store.DataDir so the default
// bookmark file lives next to the page cache.
func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "bookmark")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "bookmark")
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Bookmarks:     filepath.Join(dataDir(), "bookmarks.json"),
		StoreArticles: true,
		Search:        false,
		Renderer: Renderer{
			Enabled: false,
		},
		Fetcher: Fetcher{
			TimeoutSeconds: 30,
		},
		Embeddings: Embeddings{
			Host:  "http://localhost:11434",
			Model: "nomic-embed-text",
		},
	}
}

// DefaultYAML returns the default configuration as a YAML string. Used for
// --print-config to initialize a user config file.
func DefaultYAML() string {
	return `# bookmark configuration
# Save to ~/.config/bookmark/config.yaml and customize

# Path to the bookmark file
bookmarks: ~/.local/share/bookmark/bookmarks.json

# Persist fetched pages in the local cache
store_articles: true

# Also compute and store embedding vectors for similarity search
# (implies store_articles)
search: false

# External headless renderer for javascript-dependent pages
renderer:
  enabled: false
  # path: chromium

fetcher:
  timeout_seconds: 30
  # user_agent: ...

# Ollama-compatible embedding endpoint
embeddings:
  host: http://localhost:11434
  model: nomic-embed-text
`
}

// Source returns the raw configuration text a load would use: the given
// file, the user's config file if present, or the embedded default.
func Source(path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	userPath, err := ConfigPath()
	if err == nil {
		if data, err := os.ReadFile(userPath); err == nil {
			return string(data), nil
		}
	}
	return DefaultYAML(), nil
}

// Load reads configuration from path, or from the user's config file when
// path is empty, falling back to defaults when neither exists. An explicit
// path that cannot be read is an error; the standard path is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	// Optional .env override for the embedding endpoint.
	_ = godotenv.Load()
	if v := os.Getenv("EMBED_HOST"); v != "" {
		cfg.Embeddings.Host = v
	}
	if v := os.Getenv("EMBED_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}

	cfg.Bookmarks = expandHome(cfg.Bookmarks)

	// Searching needs the cached content its vectors were computed from.
	if cfg.Search {
		cfg.StoreArticles = true
	}

	return cfg, nil
}

func readConfig(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		return data, nil
	}

	userPath, err := ConfigPath()
	if err != nil {
		return nil, nil
	}
	data, err := os.ReadFile(userPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return data, nil
}

// expandHome resolves a leading ~/ against the user's home directory.
func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
