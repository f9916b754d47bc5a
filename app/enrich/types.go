package enrich

// Metadata is what a page fetch yields for a bookmark.
type Metadata struct {
	Title       string
	Description string
	FaviconURL  string
	OGImageURL  string
	ImageURL    string
}

func (m Metadata) complete() bool {
	return m.Title != "" && m.Description != ""
}

// merge fills empty fields of m from other.
func (m Metadata) merge(other Metadata) Metadata {
	if m.Title == "" {
		m.Title = other.Title
	}
	if m.Description == "" {
		m.Description = other.Description
	}
	if m.FaviconURL == "" {
		m.FaviconURL = other.FaviconURL
	}
	if m.OGImageURL == "" {
		m.OGImageURL = other.OGImageURL
	}
	if m.ImageURL == "" {
		m.ImageURL = other.ImageURL
	}
	return m
}
