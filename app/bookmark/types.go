package bookmark

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const tempIDPrefix = "temp-"

// NewTempID returns an identifier for a row the store has not confirmed yet.
func NewTempID() string {
	return tempIDPrefix + uuid.NewString()
}

func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// Bookmark is the in-memory row shown in the dashboard list.
type Bookmark struct {
	ID               string
	URL              string
	NormalizedURL    string
	Title            string
	Description      string
	FaviconURL       string
	OGImageURL       string
	ImageURL         string
	GroupID          *string
	CreatedAt        time.Time
	OrderIndex       int64 // all-bookmarks view
	FolderOrderIndex int64 // within-group view
	Status           Status
	ErrorReason      string
	LastFetchedAt    *time.Time

	// Enriching is client-only state: a metadata fetch is in flight for this row.
	Enriching bool
	// Optimistic marks rows whose ID has not been confirmed by the store yet.
	Optimistic bool
}

type Group struct {
	ID         string
	Name       string
	Icon       string
	Color      *string
	OrderIndex int64
	CreatedAt  time.Time
}

type ExistingBookmark struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Enrichment is the outcome of a metadata fetch for one bookmark.
type Enrichment struct {
	Status        Status
	Title         string
	Description   string
	FaviconURL    string
	OGImageURL    string
	ImageURL      string
	LastFetchedAt *time.Time
	ErrorReason   string
}

type OrderUpdate struct {
	ID         string `json:"id"`
	OrderIndex int64  `json:"order_index"`
}

type CreateParams struct {
	ID         string // optional; an existing ID overwrites that bookmark
	URL        string
	Title      string
	GroupID    *string
	OrderIndex int64
}

// Patch holds an edit to a bookmark. Nil fields are left untouched.
type Patch struct {
	Title       *string
	Description *string
	URL         *string
	GroupID     *string
	ClearGroup  bool
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.URL == nil && p.GroupID == nil && !p.ClearGroup
}

// Apply returns a copy of b with the patch applied.
func (p Patch) Apply(b Bookmark) Bookmark {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.URL != nil {
		b.URL = *p.URL
		b.NormalizedURL = NormalizeURL(*p.URL)
		// A new URL needs fresh metadata.
		if status, err := b.Status.Edit(StatusPending); err == nil {
			b.Status = status
			b.ErrorReason = ""
		}
	}
	if p.ClearGroup {
		b.GroupID = nil
	} else if p.GroupID != nil {
		id := *p.GroupID
		b.GroupID = &id
	}
	return b
}

// Revert undoes the patch on b, taking the touched fields from previous.
// Fields the patch did not touch keep their current values in b.
func (p Patch) Revert(b, previous Bookmark) Bookmark {
	if p.Title != nil {
		b.Title = previous.Title
	}
	if p.Description != nil {
		b.Description = previous.Description
	}
	if p.URL != nil {
		b.URL = previous.URL
		b.NormalizedURL = previous.NormalizedURL
		if b.Status == StatusPending {
			b.Status = previous.Status
			b.ErrorReason = previous.ErrorReason
		}
	}
	if p.ClearGroup || p.GroupID != nil {
		b.GroupID = previous.GroupID
	}
	return b
}

type GroupPatch struct {
	Name       *string
	Icon       *string
	Color      *string
	ClearColor bool
}

func (p GroupPatch) Apply(g Group) Group {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Icon != nil {
		g.Icon = *p.Icon
	}
	if p.ClearColor {
		g.Color = nil
	} else if p.Color != nil {
		c := *p.Color
		g.Color = &c
	}
	return g
}

func (p GroupPatch) Revert(g, previous Group) Group {
	if p.Name != nil {
		g.Name = previous.Name
	}
	if p.Icon != nil {
		g.Icon = previous.Icon
	}
	if p.ClearColor || p.Color != nil {
		g.Color = previous.Color
	}
	return g
}
