package enrich

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxBodySize          = 5 << 20
	maxDescriptionLength = 500
	DefaultFetchTimeout  = 15 * time.Second
)

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Fetcher downloads a bookmarked page and extracts its metadata.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	meta       *MetaExtractor
	readable   *ReadableExtractor
	feeds      *FeedExtractor
	policy     *bluemonday.Policy
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		meta:       NewMetaExtractor(),
		readable:   NewReadableExtractor(),
		feeds:      NewFeedExtractor(),
		policy:     bluemonday.StrictPolicy(),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Metadata, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return Metadata{}, fmt.Errorf("invalid url: %w", err)
	}

	data, contentType, finalURL, err := f.download(ctx, pageURL.String())
	if err != nil {
		return Metadata{}, err
	}
	if finalURL != nil {
		pageURL = finalURL
	}

	var meta Metadata
	switch {
	case strings.HasPrefix(strings.ToLower(contentType), "image/"):
		meta = Metadata{
			Title:      path.Base(pageURL.Path),
			OGImageURL: pageURL.String(),
			ImageURL:   pageURL.String(),
		}
	case isFeedContentType(contentType):
		meta, err = f.feeds.Run(data, pageURL)
		if err != nil {
			return Metadata{}, err
		}
	default:
		meta, err = f.meta.Run(data, pageURL)
		if err != nil {
			return Metadata{}, err
		}
		if !meta.complete() {
			readable, err := f.readable.Run(data, pageURL)
			if err != nil {
				slog.Debug("Readable fallback failed", "url", rawURL, "error", err)
			} else {
				meta = meta.merge(readable)
			}
		}
	}

	return f.sanitize(meta), nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, string, *url.URL, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create request: %w", err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, contentType, resp.Request.URL, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, contentType, resp.Request.URL, nil
}

// sanitize strips markup from remote text and bounds the description.
func (f *Fetcher) sanitize(m Metadata) Metadata {
	m.Title = f.cleanText(m.Title)
	m.Description = f.cleanText(m.Description)
	if runes := []rune(m.Description); len(runes) > maxDescriptionLength {
		m.Description = strings.TrimSpace(string(runes[:maxDescriptionLength])) + "…"
	}
	return m
}

func (f *Fetcher) cleanText(s string) string {
	s = html.UnescapeString(f.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
