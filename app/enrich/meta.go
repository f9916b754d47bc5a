package enrich

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MetaExtractor reads Open Graph, Twitter card and plain HTML metadata.
type MetaExtractor struct{}

func NewMetaExtractor() *MetaExtractor {
	return &MetaExtractor{}
}

func (e *MetaExtractor) Run(data []byte, base *url.URL) (Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	meta := Metadata{
		Title: firstNonEmpty(
			metaContent(doc, "og:title"),
			metaContent(doc, "twitter:title"),
			doc.Find("head title").First().Text(),
		),
		Description: firstNonEmpty(
			metaContent(doc, "og:description"),
			metaContent(doc, "twitter:description"),
			metaContent(doc, "description"),
		),
		OGImageURL: resolve(base, firstNonEmpty(
			metaContent(doc, "og:image"),
			metaContent(doc, "og:image:url"),
			metaContent(doc, "twitter:image"),
		)),
		FaviconURL: resolve(base, favicon(doc)),
	}

	if meta.FaviconURL == "" && base != nil {
		meta.FaviconURL = resolve(base, "/favicon.ico")
	}

	return meta, nil
}

// metaContent matches both property= and name= attributes.
func metaContent(doc *goquery.Document, key string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := s.AttrOr("property", s.AttrOr("name", ""))
		if !strings.EqualFold(strings.TrimSpace(name), key) {
			return true
		}
		content = strings.TrimSpace(s.AttrOr("content", ""))
		return content == ""
	})
	return content
}

func favicon(doc *goquery.Document) string {
	var href string
	for _, rel := range []string{"icon", "shortcut icon", "apple-touch-icon"} {
		doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !strings.EqualFold(strings.TrimSpace(s.AttrOr("rel", "")), rel) {
				return true
			}
			href = strings.TrimSpace(s.AttrOr("href", ""))
			return href == ""
		})
		if href != "" {
			return href
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		if !u.IsAbs() {
			return ""
		}
		return u.String()
	}
	return base.ResolveReference(u).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
