package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mfenderov/refstash/internal/pipeline"
	"github.com/mfenderov/refstash/internal/store"
	"github.com/mfenderov/refstash/pkg/models"
)

// fakePipeline fails any URL containing "bad" and tracks peak concurrency.
type fakePipeline struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (p *fakePipeline) Fetch(ctx context.Context, url string, opts pipeline.Options) models.FetchOutcome {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	p.calls.Add(1)

	if strings.Contains(url, "bad") {
		return models.FetchOutcome{Success: false, Err: errors.New("content quality too low")}
	}
	return models.FetchOutcome{Success: true, Title: "Title for " + url, Markdown: "# body"}
}

// fakeStore serves a fixed link list and records saves; URLs containing
// "cached" report AlreadyExists.
type fakeStore struct {
	mu    sync.Mutex
	links []models.ExtractedLink
	err   error
	saved []string
}

func (s *fakeStore) ExtractLinks(refID string) ([]models.ExtractedLink, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.links, nil
}

func (s *fakeStore) Save(title, url, body, query string, refetch bool) (*store.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, url)
	if strings.Contains(url, "saveerr") {
		return nil, errors.New("disk full")
	}
	res := &store.SaveResult{RefID: models.Slugify(title), Path: "/tmp/" + models.Slugify(title) + ".md"}
	if strings.Contains(url, "cached") {
		res.AlreadyExists = true
	}
	return res, nil
}

type fakeShutdowner struct {
	calls atomic.Int32
}

func (s *fakeShutdowner) RequestShutdown() { s.calls.Add(1) }

func links(n int) []models.ExtractedLink {
	out := make([]models.ExtractedLink, n)
	for i := range out {
		out[i] = models.ExtractedLink{Text: fmt.Sprintf("link %d", i), Href: fmt.Sprintf("https://example.com/%d", i)}
	}
	return out
}

func TestFetchLinks_TalliesStatuses(t *testing.T) {
	st := &fakeStore{links: []models.ExtractedLink{
		{Text: "fresh", Href: "https://example.com/fresh"},
		{Text: "seen", Href: "https://example.com/cached-page"},
		{Text: "broken", Href: "https://example.com/bad-page"},
	}}
	p := &fakePipeline{}
	sd := &fakeShutdowner{}

	res, err := New(p, st, sd).FetchLinks(t.Context(), "ref", false)
	if err != nil {
		t.Fatalf("FetchLinks() error = %v", err)
	}

	if res.Summary != (Summary{New: 1, Cached: 1, Failed: 1}) {
		t.Errorf("Summary = %+v, want {New:1 Cached:1 Failed:1}", res.Summary)
	}
	if len(res.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(res.Results))
	}

	// Result order follows link order regardless of completion order.
	if res.Results[0].Status != StatusNew || res.Results[0].RefID == "" {
		t.Errorf("Results[0] = %+v, want status new with a ref_id", res.Results[0])
	}
	if res.Results[1].Status != StatusCached {
		t.Errorf("Results[1] = %+v, want status cached", res.Results[1])
	}
	if res.Results[2].Status != StatusFailed || res.Results[2].Message == "" {
		t.Errorf("Results[2] = %+v, want status failed with a message", res.Results[2])
	}
}

func TestFetchLinks_FailedFetchIsNotSaved(t *testing.T) {
	st := &fakeStore{links: []models.ExtractedLink{
		{Text: "broken", Href: "https://example.com/bad-page"},
		{Text: "fine", Href: "https://example.com/fine"},
	}}

	res, err := New(&fakePipeline{}, st, &fakeShutdowner{}).FetchLinks(t.Context(), "ref", false)
	if err != nil {
		t.Fatalf("FetchLinks() error = %v", err)
	}
	if res.Summary.Failed != 1 || res.Summary.New != 1 {
		t.Errorf("Summary = %+v, want one failed and one new", res.Summary)
	}
	if len(st.saved) != 1 || st.saved[0] != "https://example.com/fine" {
		t.Errorf("saved = %v, failed fetches must not be persisted", st.saved)
	}
}

func TestFetchLinks_SaveErrorIsIsolated(t *testing.T) {
	st := &fakeStore{links: []models.ExtractedLink{
		{Text: "disk trouble", Href: "https://example.com/saveerr"},
	}}
	p := &fakePipeline{}

	res, err := New(p, st, &fakeShutdowner{}).FetchLinks(t.Context(), "ref", false)
	if err != nil {
		t.Fatalf("FetchLinks() error = %v", err)
	}
	if res.Results[0].Status != StatusFailed || res.Results[0].Message != "disk full" {
		t.Errorf("Results[0] = %+v, want failed with the save error", res.Results[0])
	}
}

func TestFetchLinks_WindowsBoundConcurrency(t *testing.T) {
	st := &fakeStore{links: links(13)}
	p := &fakePipeline{}
	sd := &fakeShutdowner{}

	res, err := New(p, st, sd).FetchLinks(t.Context(), "ref", false)
	if err != nil {
		t.Fatalf("FetchLinks() error = %v", err)
	}
	if got := int(p.calls.Load()); got != 13 {
		t.Errorf("pipeline called %d times, want 13", got)
	}
	if peak := int(p.peak.Load()); peak > windowSize {
		t.Errorf("peak concurrency %d exceeds window size %d", peak, windowSize)
	}
	if res.Summary.New != 13 {
		t.Errorf("Summary = %+v, want 13 new", res.Summary)
	}
	if sd.calls.Load() != 1 {
		t.Errorf("RequestShutdown called %d times, want exactly 1", sd.calls.Load())
	}
}

func TestFetchLinks_NoLinks(t *testing.T) {
	sd := &fakeShutdowner{}
	res, err := New(&fakePipeline{}, &fakeStore{}, sd).FetchLinks(t.Context(), "ref", false)
	if err != nil {
		t.Fatalf("FetchLinks() error = %v", err)
	}
	if len(res.Results) != 0 {
		t.Errorf("Results = %+v, want empty", res.Results)
	}
	if sd.calls.Load() != 0 {
		t.Errorf("RequestShutdown called %d times, want 0 when nothing fetched", sd.calls.Load())
	}
}

func TestFetchLinks_ExtractErrorPropagates(t *testing.T) {
	st := &fakeStore{err: store.ErrNotFound}
	if _, err := New(&fakePipeline{}, st, &fakeShutdowner{}).FetchLinks(t.Context(), "nope", false); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FetchLinks() error = %v, want ErrNotFound", err)
	}
}

func TestFetchLinks_TitleFallsBackToLinkText(t *testing.T) {
	st := &fakeStore{links: []models.ExtractedLink{{Text: "Anchor Text", Href: "https://example.com/x"}}}
	p := &titlelessPipeline{}

	res, err := New(p, st, &fakeShutdowner{}).FetchLinks(t.Context(), "ref", false)
	if err != nil {
		t.Fatalf("FetchLinks() error = %v", err)
	}
	if res.Results[0].RefID != "anchor-text" {
		t.Errorf("RefID = %q, want slug of the anchor text", res.Results[0].RefID)
	}
}

type titlelessPipeline struct{}

func (titlelessPipeline) Fetch(ctx context.Context, url string, opts pipeline.Options) models.FetchOutcome {
	return models.FetchOutcome{Success: true, Markdown: "# body"}
}
