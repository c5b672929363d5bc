package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mfenderov/refstash/pkg/models"
)

// header is the parsed frontmatter block of a reference file.
type header struct {
	Title       string `yaml:"title"`
	SourceURL   string `yaml:"source_url"`
	FetchedDate string `yaml:"fetched_date"`
	Type        string `yaml:"type"`
	Status      string `yaml:"status"`
	Query       string `yaml:"query"`
}

// writeReference writes the frontmatter header plus body, complete-then-rename
// so readers never observe a half-written file.
func writeReference(path string, ref models.Reference) error {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: \"%s\"\n", escapeQuoted(ref.Title))
	fmt.Fprintf(&b, "source_url: %s\n", ref.URL)
	fmt.Fprintf(&b, "fetched_date: %s\n", ref.FetchedDate)
	b.WriteString("type: web\n")
	fmt.Fprintf(&b, "status: %s\n", ref.Status)
	if ref.Query != "" {
		fmt.Fprintf(&b, "query: \"%s\"\n", escapeQuoted(ref.Query))
	}
	b.WriteString("---\n\n")
	b.WriteString(ref.Body)
	if !strings.HasSuffix(ref.Body, "\n") {
		b.WriteString("\n")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ref-*.tmp")
	if err != nil {
		return fmt.Errorf("write reference: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write reference: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write reference: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write reference: %w", err)
	}
	return nil
}

// escapeQuoted escapes double quotes for the header's quoted-string encoding.
// Deliberately not a full YAML encoder; other characters pass through as-is.
func escapeQuoted(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// readReference parses one reference file. Missing or malformed headers are
// reported as errors; callers decide whether to skip or surface them.
func readReference(path string) (*models.Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	head, body, err := splitFrontmatter(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	var h header
	if err := yaml.Unmarshal([]byte(head), &h); err != nil {
		return nil, fmt.Errorf("%s: parse header: %w", filepath.Base(path), err)
	}
	if h.SourceURL == "" {
		return nil, fmt.Errorf("%s: header missing source_url", filepath.Base(path))
	}

	status := h.Status
	if status == "" {
		status = models.StatusTemporary
	}

	return &models.Reference{
		RefID:       strings.TrimSuffix(filepath.Base(path), ".md"),
		Title:       h.Title,
		URL:         h.SourceURL,
		FetchedDate: h.FetchedDate,
		Query:       h.Query,
		Status:      status,
		Body:        body,
		Path:        path,
	}, nil
}

// splitFrontmatter separates the leading "---" delimited header from the body.
func splitFrontmatter(content string) (head, body string, err error) {
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return "", "", fmt.Errorf("no frontmatter header")
	}
	head, body, ok = strings.Cut(rest, "\n---\n")
	if !ok {
		return "", "", fmt.Errorf("unterminated frontmatter header")
	}
	return head, strings.TrimPrefix(body, "\n"), nil
}
