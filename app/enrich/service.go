package enrich

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lysyi3m/reway/app/bookmark"
)

const saveFailedReason = "Failed to save metadata"

type MetadataFetcher interface {
	Fetch(ctx context.Context, rawURL string) (Metadata, error)
}

type EnrichmentStore interface {
	UpdateEnrichment(ctx context.Context, id string, result bookmark.Enrichment) error
}

// Service enriches a stored bookmark and persists the outcome.
type Service struct {
	fetcher MetadataFetcher
	store   EnrichmentStore
}

func NewService(fetcher MetadataFetcher, store EnrichmentStore) *Service {
	return &Service{
		fetcher: fetcher,
		store:   store,
	}
}

// Enrich never fails: fetch and store problems become a failed result with a
// reason.
func (s *Service) Enrich(ctx context.Context, id, rawURL string) bookmark.Enrichment {
	now := time.Now().UTC()

	result := bookmark.Enrichment{
		Status:        bookmark.StatusReady,
		LastFetchedAt: &now,
	}

	meta, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		slog.Warn("Failed to enrich bookmark", "bookmark_id", id, "url", rawURL, "error", err)
		result.Status = bookmark.StatusFailed
		result.ErrorReason = reason(err)
	} else {
		result.Title = meta.Title
		result.Description = meta.Description
		result.FaviconURL = meta.FaviconURL
		result.OGImageURL = meta.OGImageURL
		result.ImageURL = meta.ImageURL
	}

	if err := s.store.UpdateEnrichment(ctx, id, result); err != nil {
		slog.Error("Failed to store enrichment", "bookmark_id", id, "error", err)
		return unsaved(result)
	}

	slog.Debug("Bookmark enriched", "bookmark_id", id, "status", result.Status)
	return result
}

// unsaved reports a result the store rejected as failed, dropping the fetched
// metadata that never reached the database.
func unsaved(result bookmark.Enrichment) bookmark.Enrichment {
	failed := bookmark.Enrichment{
		Status:        bookmark.StatusFailed,
		ErrorReason:   result.ErrorReason,
		LastFetchedAt: result.LastFetchedAt,
	}
	if failed.ErrorReason == "" {
		failed.ErrorReason = saveFailedReason
	}
	return failed
}

func reason(err error) string {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out"
	default:
		return "Fetch failed"
	}
}
