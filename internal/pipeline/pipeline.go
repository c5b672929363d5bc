// Package pipeline implements the quality-gated fetch: plain HTTP first,
// scored, with escalation to a headless browser render when the simple
// result is not good enough.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mfenderov/refstash/internal/browser"
	"github.com/mfenderov/refstash/internal/extract"
	"github.com/mfenderov/refstash/internal/quality"
	"github.com/mfenderov/refstash/pkg/models"
)

// Reasons the pipeline escalates to the fallback renderer.
const (
	ReasonForced           = "forced"
	ReasonNetworkError     = "network_error"
	ReasonExtractionFailed = "extraction_failed"
	ReasonQualityMarginal  = "quality_marginal"
	ReasonQualityTooLow    = "quality_too_low"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// rejectedSuggestion is attached to quality_rejected failures.
const rejectedSuggestion = "the page may be behind a login wall or be an app not suited to article extraction"

// Extractor turns raw HTML into a readable article.
type Extractor interface {
	Extract(html, baseURL string) (*extract.Article, error)
}

// BrowserLease is one caller's handle on the fallback renderer.
type BrowserLease interface {
	Render(ctx context.Context, url string) (string, error)
	Release()
}

// Browser grants renderer leases.
type Browser interface {
	Acquire(ctx context.Context) (BrowserLease, error)
}

// managerBrowser adapts *browser.Manager to the Browser interface.
type managerBrowser struct {
	mgr *browser.Manager
}

func (b managerBrowser) Acquire(ctx context.Context) (BrowserLease, error) {
	return b.mgr.Acquire(ctx)
}

// ManagerBrowser wraps the shared lease manager for use by a Fetcher.
func ManagerBrowser(m *browser.Manager) Browser {
	return managerBrowser{mgr: m}
}

// Config holds pipeline configuration.
type Config struct {
	UserAgent         string
	Timeout           time.Duration
	MinScore          int // nothing below this is ever accepted
	FallbackThreshold int // at or above this the simple fetch skips the renderer
}

// Options adjusts a single Fetch call. Zero values fall back to the
// configured thresholds.
type Options struct {
	MinScore          int
	FallbackThreshold int
	ForceFallback     bool
}

// Fetcher runs the quality-gated fetch pipeline.
type Fetcher struct {
	cfg       Config
	extractor Extractor
	browser   Browser
	client    *http.Client

	// score is swapped out in tests.
	score func(markdown string, sourceHTMLLen int) models.QualityVerdict
}

// New creates a Fetcher. The browser is only touched when a fetch escalates.
func New(cfg Config, extractor Extractor, browser Browser) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = 60
	}
	if cfg.FallbackThreshold == 0 {
		cfg.FallbackThreshold = 80
	}
	return &Fetcher{
		cfg:       cfg,
		extractor: extractor,
		browser:   browser,
		client:    &http.Client{Timeout: cfg.Timeout},
		score:     quality.Score,
	}
}

// candidate pairs an extracted article with its verdict.
type candidate struct {
	article *extract.Article
	verdict models.QualityVerdict
}

// Fetch runs the full pipeline for one URL and always returns an outcome;
// failures are reported on the outcome, never as a Go error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) models.FetchOutcome {
	if opts.MinScore == 0 {
		opts.MinScore = f.cfg.MinScore
	}
	if opts.FallbackThreshold == 0 {
		opts.FallbackThreshold = f.cfg.FallbackThreshold
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return failOutcome(KindInvalidURL, fmt.Errorf("parse url %q: %w", rawURL, err), nil, "")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return failOutcome(KindInvalidURL, fmt.Errorf("unsupported scheme %q", u.Scheme), nil, "")
	}

	if opts.ForceFallback {
		return f.fallback(ctx, rawURL, opts, ReasonForced, nil)
	}

	body, contentType, err := f.get(ctx, rawURL)
	if err != nil {
		slog.Debug("simple fetch failed, escalating", "url", rawURL, "error", err)
		return f.fallback(ctx, rawURL, opts, ReasonNetworkError, nil)
	}

	simple, err := f.extractAndScore(body, contentType, rawURL)
	if err != nil {
		slog.Debug("extraction failed on simple fetch, escalating", "url", rawURL, "error", err)
		return f.fallback(ctx, rawURL, opts, ReasonExtractionFailed, nil)
	}

	score := simple.verdict.Score
	slog.Debug("simple fetch scored", "url", rawURL, "score", score)

	switch {
	case score >= opts.FallbackThreshold:
		return acceptOutcome(simple, false, "")
	case score >= opts.MinScore:
		// Marginal: try the renderer, but keep this result as a last resort.
		return f.fallback(ctx, rawURL, opts, ReasonQualityMarginal, simple)
	default:
		return f.fallback(ctx, rawURL, opts, ReasonQualityTooLow, nil)
	}
}

// fallback renders the page with the shared browser engine, re-extracts and
// reconciles against the remembered simple result when one exists.
func (f *Fetcher) fallback(ctx context.Context, rawURL string, opts Options, reason string, simple *candidate) models.FetchOutcome {
	slog.Debug("fallback fetch", "url", rawURL, "reason", reason)

	lease, err := f.browser.Acquire(ctx)
	if err != nil {
		if simple != nil && reason == ReasonQualityMarginal {
			slog.Warn("browser unavailable, keeping simple result", "url", rawURL, "error", err)
			return acceptOutcome(simple, false, reason)
		}
		if errors.Is(err, browser.ErrEngineUnavailable) {
			return failOutcome(KindEngineUnavailable, err, nil,
				"browser engine not installed or not available")
		}
		return failOutcome(KindFallbackFetchFailed, err, nil, "")
	}

	var html string
	func() {
		defer lease.Release()
		html, err = lease.Render(ctx, rawURL)
	}()
	if err != nil {
		if simple != nil && reason == ReasonQualityMarginal {
			slog.Debug("render failed, keeping simple result", "url", rawURL, "error", err)
			return acceptOutcome(simple, false, reason)
		}
		return failOutcome(KindFallbackFetchFailed, fmt.Errorf("render %s: %w", rawURL, err), nil, "")
	}

	article, err := f.extractor.Extract(html, rawURL)
	if err != nil {
		if simple != nil && reason == ReasonQualityMarginal {
			return acceptOutcome(simple, false, reason)
		}
		return failOutcome(KindExtractionFailed, fmt.Errorf("extract rendered %s: %w", rawURL, err), nil, "")
	}

	rendered := &candidate{article: article, verdict: f.score(article.Markdown, len(html))}
	slog.Debug("fallback fetch scored", "url", rawURL, "score", rendered.verdict.Score)

	if simple != nil && reason == ReasonQualityMarginal {
		// Only a strict improvement displaces the already-acceptable simple result.
		if rendered.verdict.Score > simple.verdict.Score {
			return acceptOutcome(rendered, true, reason)
		}
		return acceptOutcome(simple, false, reason)
	}

	if rendered.verdict.Score >= opts.MinScore {
		return acceptOutcome(rendered, true, reason)
	}

	v := rendered.verdict
	return failOutcome(KindQualityRejected,
		fmt.Errorf("content quality too low (score %d)", v.Score), &v, rejectedSuggestion)
}

// extractAndScore handles simple-fetch responses, passing already-markdown
// bodies straight to the scorer without readability.
func (f *Fetcher) extractAndScore(body, contentType, rawURL string) (*candidate, error) {
	if extract.IsMarkdown(rawURL, contentType, body) {
		md := extract.Normalize(body)
		return &candidate{
			article: &extract.Article{Title: extract.MarkdownTitle(md), Markdown: md},
			verdict: f.score(md, 0),
		}, nil
	}

	article, err := f.extractor.Extract(body, rawURL)
	if err != nil {
		return nil, err
	}
	return &candidate{article: article, verdict: f.score(article.Markdown, len(body))}, nil
}

// get performs the plain HTTP fetch with a browser-like User-Agent.
func (f *Fetcher) get(ctx context.Context, rawURL string) (body, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/markdown;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	return string(data), resp.Header.Get("Content-Type"), nil
}

func acceptOutcome(c *candidate, usedFallback bool, reason string) models.FetchOutcome {
	v := c.verdict
	return models.FetchOutcome{
		Success:              true,
		Markdown:             c.article.Markdown,
		Title:                c.article.Title,
		Byline:               c.article.Byline,
		Excerpt:              c.article.Excerpt,
		SiteName:             c.article.SiteName,
		Verdict:              &v,
		UsedFallbackRenderer: usedFallback,
		FallbackReason:       reason,
	}
}

func failOutcome(kind string, err error, verdict *models.QualityVerdict, suggestion string) models.FetchOutcome {
	return models.FetchOutcome{
		Success:    false,
		Verdict:    verdict,
		Err:        &Error{Kind: kind, Err: err},
		Suggestion: suggestion,
	}
}
