// Package batch fetches every outbound link of a stored reference through
// the quality-gated pipeline, windowed to bound concurrency.
package batch

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mfenderov/refstash/internal/pipeline"
	"github.com/mfenderov/refstash/internal/store"
	"github.com/mfenderov/refstash/pkg/models"
)

// windowSize is how many links fetch concurrently; the next window starts
// only after the previous one has fully settled.
const windowSize = 5

// Per-link statuses.
const (
	StatusNew    = "new"
	StatusCached = "cached"
	StatusFailed = "failed"
)

// Pipeline is the fetch pipeline consumed by the batch fetcher.
type Pipeline interface {
	Fetch(ctx context.Context, url string, opts pipeline.Options) models.FetchOutcome
}

// Store is the reference store surface the batch fetcher needs.
type Store interface {
	ExtractLinks(refID string) ([]models.ExtractedLink, error)
	Save(title, url, body, query string, refetch bool) (*store.SaveResult, error)
}

// Shutdowner requests browser engine shutdown after the last window.
type Shutdowner interface {
	RequestShutdown()
}

// LinkResult is the outcome for one link.
type LinkResult struct {
	URL     string `json:"url"`
	Text    string `json:"text,omitempty"`
	Status  string `json:"status"`
	RefID   string `json:"ref_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Summary tallies per-link statuses.
type Summary struct {
	New    int `json:"new"`
	Cached int `json:"cached"`
	Failed int `json:"failed"`
}

// Result is the full batch outcome.
type Result struct {
	Results []LinkResult `json:"results"`
	Summary Summary      `json:"summary"`
}

// Fetcher drives the pipeline and store over a reference's links.
type Fetcher struct {
	pipeline Pipeline
	store    Store
	browser  Shutdowner
}

// New creates a batch Fetcher.
func New(p Pipeline, s Store, b Shutdowner) *Fetcher {
	return &Fetcher{pipeline: p, store: s, browser: b}
}

// FetchLinks fetches every outbound link of the given reference. Link
// extraction failure is the only outright error; per-link failures are
// isolated in the result list. The browser shutdown request is issued
// exactly once after the last window, leases permitting.
func (f *Fetcher) FetchLinks(ctx context.Context, refID string, refetch bool) (*Result, error) {
	links, err := f.store.ExtractLinks(refID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return &Result{Results: []LinkResult{}}, nil
	}

	slog.Debug("batch fetch starting", "ref_id", refID, "links", len(links))

	results := make([]LinkResult, len(links))
	for start := 0; start < len(links); start += windowSize {
		end := min(start+windowSize, len(links))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = f.fetchOne(ctx, links[i], refetch)
				return nil
			})
		}
		g.Wait()
	}

	f.browser.RequestShutdown()

	res := &Result{Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusNew:
			res.Summary.New++
		case StatusCached:
			res.Summary.Cached++
		default:
			res.Summary.Failed++
		}
	}

	slog.Debug("batch fetch done", "ref_id", refID,
		"new", res.Summary.New, "cached", res.Summary.Cached, "failed", res.Summary.Failed)
	return res, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, link models.ExtractedLink, refetch bool) LinkResult {
	outcome := f.pipeline.Fetch(ctx, link.Href, pipeline.Options{})
	if !outcome.Success {
		msg := "fetch failed"
		if outcome.Err != nil {
			msg = outcome.Err.Error()
		}
		return LinkResult{URL: link.Href, Text: link.Text, Status: StatusFailed, Message: msg}
	}

	title := outcome.Title
	if title == "" {
		title = link.Text
	}
	if title == "" {
		title = link.Href
	}

	saved, err := f.store.Save(title, link.Href, outcome.Markdown, "", refetch)
	if err != nil {
		return LinkResult{URL: link.Href, Text: link.Text, Status: StatusFailed, Message: err.Error()}
	}

	status := StatusNew
	if saved.AlreadyExists {
		status = StatusCached
	}
	return LinkResult{URL: link.Href, Text: link.Text, Status: status, RefID: saved.RefID}
}
