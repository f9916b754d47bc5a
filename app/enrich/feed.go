package enrich

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

// FeedExtractor describes bookmarks that point at an RSS, Atom or JSON feed.
type FeedExtractor struct {
	gofeedParser *gofeed.Parser
}

func NewFeedExtractor() *FeedExtractor {
	return &FeedExtractor{
		gofeedParser: gofeed.NewParser(),
	}
}

func (e *FeedExtractor) Run(data []byte, base *url.URL) (Metadata, error) {
	feed, err := e.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to parse feed: %w", err)
	}

	meta := Metadata{
		Title:       feed.Title,
		Description: feed.Description,
	}
	if feed.Image != nil {
		meta.OGImageURL = resolve(base, feed.Image.URL)
	}
	if base != nil {
		meta.FaviconURL = resolve(base, "/favicon.ico")
	}

	return meta, nil
}

func isFeedContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, t := range []string{"application/rss+xml", "application/atom+xml", "application/feed+json", "application/xml", "text/xml"} {
		if strings.Contains(ct, t) {
			return true
		}
	}
	return false
}
