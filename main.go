// Bookmark is a personal bookmarking tool: it resolves and titles URLs,
// archives the fetched pages in a content-addressed cache, and searches the
// archive by embedding similarity.
package main

import (
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"bookmark/bookmarks"
	"bookmark/config"
	"bookmark/embeddings"
	"bookmark/fetcher"
	"bookmark/resolver"
	"bookmark/search"
	"bookmark/store"
)

func main() {
	var (
		configPath    string
		bookmarksPath string
		printConfig   bool
		rest          []string
	)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "error: --config requires a file argument")
				os.Exit(1)
			}
			configPath = args[i]
		case "-b", "--bookmarks":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "error: --bookmarks requires a file argument")
				os.Exit(1)
			}
			bookmarksPath = args[i]
		case "--print-config":
			printConfig = true
		case "-h", "--help":
			printUsage()
			return
		default:
			rest = append(rest, args[i])
		}
	}

	if printConfig {
		src, err := config.Source(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(src)
		return
	}

	if err := run(configPath, bookmarksPath, rest); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bookmark - a personal bookmarking tool

Usage: bookmark [options] [command]

Options:
  -c, --config FILE     Alternate config file
  -b, --bookmarks FILE  Override the configured bookmark file
      --print-config    Print the configuration in use and exit
  -h, --help            Show this help

Commands:
  (none)                List bookmarks
  add <address>         Add a bookmark
  fetch <address>...    Warm the page cache without bookmarking
  hash <identifier>     Look up a bookmark by its cache identifier
  search <words>...     Rank bookmarks by similarity to a query
  similar <address>     Rank bookmarks by similarity to one bookmark
  embed                 Compute missing embedding vectors for cached pages

Configuration:
  Config file: ~/.config/bookmark/config.yaml
  Generate with: bookmark --print-config > ~/.config/bookmark/config.yaml`)
}

func run(configPath, bookmarksPath string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if bookmarksPath != "" {
		cfg.Bookmarks = bookmarksPath
	}

	bs, err := bookmarks.Load(cfg.Bookmarks)
	if err != nil {
		return err
	}

	// Every run rewrites the normalized collection, so the stored form is
	// always deduplicated and sorted.
	if removed := bs.Normalize(); removed > 0 {
		fmt.Printf("deduped %d entries\n", removed)
	}
	if err := bs.Save(); err != nil {
		return err
	}

	selector := fetcher.New(fetcher.Options{
		UserAgent:       cfg.Fetcher.UserAgent,
		TimeoutSeconds:  cfg.Fetcher.TimeoutSeconds,
		RendererEnabled: cfg.Renderer.Enabled,
		RendererPath:    cfg.Renderer.Path,
	})

	// storeEmbedder must stay a nil interface when search is off; assigning
	// the nil *Client unconditionally would make it non-nil and the store
	// would call through it.
	var embedder *embeddings.Client
	var storeEmbedder store.Embedder
	if cfg.Search {
		embedder = embeddings.NewClient(cfg.Embeddings.Host, cfg.Embeddings.Model)
		storeEmbedder = embedder
	}

	st, err := store.New("", selector, storeEmbedder, cfg.StoreArticles)
	if err != nil {
		return err
	}

	command := ""
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "":
		for i, b := range bs.Bookmarks {
			fmt.Printf("%d %s (%s)\n", i+1, b.Title, b.Href)
		}
		return nil

	case "add":
		if len(args) != 1 {
			return fmt.Errorf("usage: bookmark add <address>")
		}
		return cmdAdd(st, bs, args[0])

	case "fetch":
		if len(args) == 0 {
			return fmt.Errorf("usage: bookmark fetch <address>...")
		}
		for _, address := range args {
			fmt.Printf("fetching %s... ", address)
			if _, err := st.Fetch(address); err != nil {
				fmt.Println()
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				continue
			}
			fmt.Println("done")
		}
		return nil

	case "hash":
		if len(args) != 1 {
			return fmt.Errorf("usage: bookmark hash <identifier>")
		}
		b := bs.FindByIdentifier(args[0])
		if b == nil {
			return fmt.Errorf("no bookmark with identifier %s", args[0])
		}
		fmt.Printf("%s (%s)\n", b.Title, b.Href)
		return nil

	case "search":
		if len(args) == 0 {
			return fmt.Errorf("usage: bookmark search <words>...")
		}
		if embedder == nil {
			return fmt.Errorf("search is disabled in configuration")
		}
		query, err := embedder.Embed(strings.Join(args, " "))
		if err != nil {
			return err
		}
		results, err := search.Search(st, bs, query, search.DefaultTopK)
		if err != nil {
			return err
		}
		printResults(results)
		return nil

	case "similar":
		if len(args) != 1 {
			return fmt.Errorf("usage: bookmark similar <address>")
		}
		results, err := search.Similar(st, bs, store.Hash(args[0]), search.DefaultTopK)
		if err != nil {
			return err
		}
		printResults(results)
		return nil

	case "embed":
		if embedder == nil {
			return fmt.Errorf("search is disabled in configuration")
		}
		n, err := st.ReembedMissing()
		if err != nil {
			return err
		}
		fmt.Printf("computed %d embeddings\n", n)
		return nil

	default:
		return fmt.Errorf("unknown command %q (see --help)", command)
	}
}

func cmdAdd(st *store.UrlStore, bs *bookmarks.Store, address string) error {
	if existing := bs.Find(address); existing != nil {
		msg := fmt.Sprintf("warning: this url is already present in bookmarks: %s", existing.Title)
		if existing.Meta.Posted != nil {
			msg += " added the " + existing.Meta.Posted.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintln(os.Stderr, msg)
		return nil
	}

	fmt.Printf("fetching %s... ", address)
	res, err := resolver.Resolve(st, address)
	if err != nil {
		fmt.Println()
		return err
	}

	now := time.Now().UTC()
	meta := bookmarks.Metadata{Posted: &now, Referer: res.Referer}
	if u, err := user.Current(); err == nil {
		meta.User = u.Username
	}

	bs.Add(bookmarks.Bookmark{Href: res.Address, Title: res.Title, Meta: meta})
	if err := bs.Save(); err != nil {
		return err
	}
	fmt.Printf("\radded %s\n", res.Title)
	return nil
}

func printResults(results []search.Result) {
	for _, r := range results {
		fmt.Printf("%.4f %s (%s)\n", r.Score, r.Bookmark.Title, r.Bookmark.Href)
	}
}
