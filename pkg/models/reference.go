package models

import (
	"regexp"
	"strings"
)

// Reference status values as written to the frontmatter header.
const (
	StatusTemporary = "temporary"
	StatusPermanent = "permanent"
)

// Reference represents a persisted fetch result.
type Reference struct {
	RefID       string `json:"ref_id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	FetchedDate string `json:"fetched_date"` // ISO date, YYYY-MM-DD
	Query       string `json:"query,omitempty"`
	Status      string `json:"status"`
	Body        string `json:"body,omitempty"`
	Path        string `json:"path,omitempty"` // file the reference was read from
}

// ExtractedLink is one outbound link found in a reference body.
type ExtractedLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a filesystem- and id-safe ref ID from a title.
// Lowercased, non-alphanumeric runs collapsed to "-", trimmed, capped at 60 chars.
func Slugify(title string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	if slug == "" {
		slug = "untitled"
	}
	return slug
}
