package models

// QualityVerdict is the result of scoring extracted markdown.
// Issues are weighted failures that can fail a threshold; warnings are
// informational and never block acceptance on their own.
type QualityVerdict struct {
	Score    int      `json:"score"` // 0..100
	Issues   []string `json:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// IsValid reports whether the verdict clears the scorer's built-in bar.
// This is a fixed heuristic; the fetch pipeline applies its own configured
// thresholds and does not rely on it for accept/reject decisions.
func (v QualityVerdict) IsValid() bool {
	return v.Score >= 60
}

// FetchOutcome is the terminal result of one pipeline run.
type FetchOutcome struct {
	Success              bool            `json:"success"`
	Markdown             string          `json:"markdown,omitempty"`
	Title                string          `json:"title,omitempty"`
	Byline               string          `json:"byline,omitempty"`
	Excerpt              string          `json:"excerpt,omitempty"`
	SiteName             string          `json:"site_name,omitempty"`
	Verdict              *QualityVerdict `json:"verdict,omitempty"`
	UsedFallbackRenderer bool            `json:"used_fallback_renderer"`
	FallbackReason       string          `json:"fallback_reason,omitempty"`
	Err                  error           `json:"-"`
	Suggestion           string          `json:"suggestion,omitempty"`
}
