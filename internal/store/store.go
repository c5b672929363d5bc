// Package store persists fetch results as frontmatter-headed markdown files,
// deduplicated by source URL. A reference lives in the temporary directory
// until promoted into the permanent one.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mfenderov/refstash/pkg/models"
)

// ErrNotFound is returned by lookups for unknown ref IDs or URLs.
var ErrNotFound = errors.New("reference not found")

// Config holds store directories.
type Config struct {
	Dir          string // temporary references
	PermanentDir string // promoted references
}

// Store is a file-backed reference store. Not safe against concurrent
// external writers to the same directories.
type Store struct {
	dir          string
	permanentDir string
	now          func() time.Time
}

// New creates a Store, creating both directories if needed.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("store dir is required")
	}
	if cfg.PermanentDir == "" {
		return nil, fmt.Errorf("permanent dir is required")
	}
	for _, dir := range []string{cfg.Dir, cfg.PermanentDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return &Store{dir: cfg.Dir, permanentDir: cfg.PermanentDir, now: time.Now}, nil
}

// SaveResult reports where a reference was written.
type SaveResult struct {
	RefID         string `json:"ref_id"`
	Path          string `json:"path"`
	AlreadyExists bool   `json:"already_exists,omitempty"`
}

// Save persists a fetch result. Dedup key is the exact URL: an existing
// reference is returned untouched unless refetch is set, in which case the
// same file is overwritten in place, keeping its refID and path.
func (s *Store) Save(title, url, body, query string, refetch bool) (*SaveResult, error) {
	url = sanitizeURL(url)

	existing, err := s.FindByURL(url)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing != nil && !refetch {
		return &SaveResult{RefID: existing.RefID, Path: existing.Path, AlreadyExists: true}, nil
	}

	refID := models.Slugify(title)
	path := filepath.Join(s.dir, refID+".md")
	status := models.StatusTemporary
	query = strings.TrimSpace(query)

	if existing != nil {
		// Refetch keeps the original identity, only content and date move.
		refID = existing.RefID
		path = existing.Path
		status = existing.Status
		if query == "" {
			query = existing.Query
		}
	}

	ref := models.Reference{
		RefID:       refID,
		Title:       title,
		URL:         url,
		FetchedDate: s.now().Format("2006-01-02"),
		Query:       query,
		Status:      status,
		Body:        body,
	}

	if err := writeReference(path, ref); err != nil {
		return nil, err
	}

	slog.Debug("reference saved", "ref_id", refID, "path", path, "refetch", existing != nil)
	return &SaveResult{RefID: refID, Path: path}, nil
}

// List returns every parsable reference in the temporary directory, newest
// fetched_date first. Files without a valid header are skipped silently.
func (s *Store) List() ([]models.Reference, error) {
	return listDir(s.dir)
}

// ListPermanent returns every parsable reference in the permanent directory.
func (s *Store) ListPermanent() ([]models.Reference, error) {
	return listDir(s.permanentDir)
}

func listDir(dir string) ([]models.Reference, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	var refs []models.Reference
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		ref, err := readReference(path)
		if err != nil {
			slog.Debug("skipping unparsable reference", "path", path, "error", err)
			continue
		}
		refs = append(refs, *ref)
	}

	// ISO dates sort correctly as strings.
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].FetchedDate > refs[j].FetchedDate
	})
	return refs, nil
}

// Find returns the reference with the given ref ID from the temporary
// directory.
func (s *Store) Find(refID string) (*models.Reference, error) {
	path := filepath.Join(s.dir, refID+".md")
	ref, err := readReference(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, refID)
		}
		return nil, err
	}
	return ref, nil
}

// FindByURL returns the reference whose source_url exactly matches url.
func (s *Store) FindByURL(url string) (*models.Reference, error) {
	refs, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range refs {
		if refs[i].URL == url {
			return &refs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
}

// PromoteResult reports the file move performed by Promote.
type PromoteResult struct {
	FromPath string `json:"from_path"`
	ToPath   string `json:"to_path"`
}

// Promote rewrites a temporary reference into the permanent directory with
// status permanent, then removes the original. A source file that vanishes
// between lookup and read reports ErrNotFound.
func (s *Store) Promote(refID string) (*PromoteResult, error) {
	ref, err := s.Find(refID)
	if err != nil {
		return nil, err
	}

	ref.Status = models.StatusPermanent
	toPath := filepath.Join(s.permanentDir, refID+".md")
	if err := writeReference(toPath, *ref); err != nil {
		return nil, err
	}

	if err := os.Remove(ref.Path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove promoted reference: %w", err)
	}

	slog.Debug("reference promoted", "ref_id", refID, "to", toPath)
	return &PromoteResult{FromPath: ref.Path, ToPath: toPath}, nil
}

// Delete removes a temporary reference and returns the path it occupied.
func (s *Store) Delete(refID string) (string, error) {
	path := filepath.Join(s.dir, refID+".md")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, refID)
		}
		return "", fmt.Errorf("delete reference: %w", err)
	}
	slog.Debug("reference deleted", "ref_id", refID)
	return path, nil
}

var inlineLinkRe = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^)\s]+)\)`)

// ExtractLinks scans a reference body for inline markdown links, keeping
// only http(s) targets, deduplicated by href with the first-seen text.
func (s *Store) ExtractLinks(refID string) ([]models.ExtractedLink, error) {
	ref, err := s.Find(refID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []models.ExtractedLink
	for _, m := range inlineLinkRe.FindAllStringSubmatch(ref.Body, -1) {
		text, href := m[1], m[2]
		if seen[href] {
			continue
		}
		seen[href] = true
		links = append(links, models.ExtractedLink{Text: text, Href: href})
	}
	return links, nil
}

// sanitizeURL strips CR/LF so a hostile URL cannot inject header fields.
func sanitizeURL(url string) string {
	url = strings.ReplaceAll(url, "\r", "")
	url = strings.ReplaceAll(url, "\n", "")
	return strings.TrimSpace(url)
}
