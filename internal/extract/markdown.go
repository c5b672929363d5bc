package extract

import (
	"regexp"
	"strings"
)

// IsMarkdown reports whether a fetched response already is markdown, so the
// pipeline can skip readability extraction entirely. Checks Content-Type
// first, then the URL extension, then content heuristics.
func IsMarkdown(url, contentType, body string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "text/markdown") || strings.HasPrefix(ct, "text/x-markdown") {
		return true
	}

	lower := strings.ToLower(url)
	if strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown") {
		return true
	}

	return looksLikeMarkdown(body)
}

var (
	headingRe = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	listRe    = regexp.MustCompile(`(?m)^[\-\*]\s+\S`)
	linkRe    = regexp.MustCompile(`\[.+?\]\(.+?\)`)
)

func looksLikeMarkdown(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return false
	}

	// HTML documents are never treated as markdown, whatever else they contain.
	lower := strings.ToLower(trimmed)
	for _, prefix := range []string{"<!doctype", "<html", "<head", "<body"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}

	return headingRe.MatchString(trimmed) ||
		listRe.MatchString(trimmed) ||
		linkRe.MatchString(trimmed)
}

// MarkdownTitle derives a title from the first heading of a markdown body.
func MarkdownTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "#"); ok {
			return strings.TrimSpace(strings.TrimLeft(rest, "#"))
		}
	}
	return ""
}
