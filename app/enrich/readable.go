package enrich

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-shiori/go-readability"
)

// ReadableExtractor falls back to readability scoring for pages that carry
// no usable meta tags.
type ReadableExtractor struct{}

func NewReadableExtractor() *ReadableExtractor {
	return &ReadableExtractor{}
}

func (e *ReadableExtractor) Run(data []byte, pageURL *url.URL) (Metadata, error) {
	if len(data) == 0 {
		return Metadata{}, fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to extract article: %w", err)
	}

	slog.Debug("Readable metadata extracted",
		"title", article.Title,
		"excerpt_length", len(article.Excerpt))

	return Metadata{
		Title:       article.Title,
		Description: article.Excerpt,
	}, nil
}
