// Package resolver rewrites aggregator discussion pages to the articles
// they point to before a bookmark is recorded.
package resolver

import (
	"fmt"
	"strings"

	"bookmark/html"
)

// Fetcher retrieves page content, normally through the cache.
type Fetcher interface {
	Fetch(address string) ([]byte, error)
}

// Resolution is the outcome of resolving an address: where the bookmark
// should point, its title, and the discussion page it came through, if any.
type Resolution struct {
	Address string
	Title   string
	Referer string // set only when the address was rewritten
}

const (
	hnItemPrefix = "news.ycombinator.com/item?id="
	hnBase       = "https://news.ycombinator.com/"
	// Selector for the submitted article's link on an HN item page.
	hnTitleLine = ".titleline > a"
)

// IsHNItem reports whether the address is a Hacker News discussion page.
func IsHNItem(address string) bool {
	return strings.Contains(address, hnItemPrefix)
}

// Resolve fetches the address and extracts its title. Hacker News item
// pages resolve through to the submitted article, with the discussion page
// recorded as the referer.
func Resolve(f Fetcher, address string) (*Resolution, error) {
	if IsHNItem(address) {
		return resolveHN(f, address)
	}

	content, err := f.Fetch(address)
	if err != nil {
		return nil, err
	}
	title, err := html.Title(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", address, err)
	}
	return &Resolution{Address: address, Title: title}, nil
}

func resolveHN(f Fetcher, address string) (*Resolution, error) {
	content, err := f.Fetch(address)
	if err != nil {
		return nil, err
	}

	article, err := html.FirstAnchor(content, hnTitleLine)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", address, err)
	}
	// Self posts link back into the site with a relative href.
	if strings.HasPrefix(article, "item?") {
		article = hnBase + article
	}

	articleContent, err := f.Fetch(article)
	if err != nil {
		return nil, err
	}
	title, err := html.Title(articleContent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", article, err)
	}

	return &Resolution{Address: article, Title: title, Referer: address}, nil
}
