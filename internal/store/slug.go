package store

import (
	"regexp"
	"strings"
)

const (
	// MaxTitleChars caps a sanitized title.
	MaxTitleChars = 255
	// MaxSlugChars caps a derived slug.
	MaxSlugChars = 50

	// DefaultTitle is used when a request carries no usable title.
	DefaultTitle = "Untitled"
)

var (
	htmlTagPattern  = regexp.MustCompile(`<[^>]*>`)
	nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)
)

// SanitizeTitle strips HTML tags, trims whitespace and caps the length.
// An empty result falls back to DefaultTitle.
func SanitizeTitle(title string) string {
	t := htmlTagPattern.ReplaceAllString(title, "")
	t = strings.TrimSpace(t)
	if r := []rune(t); len(r) > MaxTitleChars {
		t = string(r[:MaxTitleChars])
	}
	if t == "" {
		return DefaultTitle
	}
	return t
}

// Slugify derives a cosmetic URL fragment from a sanitized title. The slug is
// never required for lookup; an empty return means the share URL carries the
// bare ID.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = strings.TrimSuffix(slug, ".md")
	slug = nonAlnumPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugChars {
		slug = slug[:MaxSlugChars]
	}
	if slug == "" || slug == "untitled" {
		return ""
	}
	return slug
}

// DocParam composes the ?doc= value for a record: "slug-id" when a slug
// exists, otherwise the bare ID.
func DocParam(slug, id string) string {
	if slug == "" {
		return id
	}
	return slug + "-" + id
}
