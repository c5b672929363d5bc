// Package quality scores extracted markdown to decide whether a plain HTTP
// fetch produced usable article content or the page needs a browser render.
package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mfenderov/refstash/pkg/models"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	tableTagRe   = regexp.MustCompile(`(?i)</?t[rd]\b[^>]*>`)
	mdPunctRe    = regexp.MustCompile("[#*\\-_`\\[\\]()]")
	newlineRunRe = regexp.MustCompile(`\n{5,}`)
	scriptOpenRe = regexp.MustCompile(`(?i)<script\b`)
	styleOpenRe  = regexp.MustCompile(`(?i)<style\b`)
)

// boilerplateRes match error pages, login/paywall walls, bot checks and
// similar non-article content. Checked against the stripped text only when
// it is short; long real articles may mention these phrases in passing.
var boilerplateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b404\b.{0,20}not found`),
	regexp.MustCompile(`(?i)page (could )?not (be )?found`),
	regexp.MustCompile(`(?i)\b403\b.{0,20}forbidden`),
	regexp.MustCompile(`(?i)access (is )?denied`),
	regexp.MustCompile(`(?i)this page (isn'?t|is not) available`),
	regexp.MustCompile(`(?i)an error (has )?occurred`),
	regexp.MustCompile(`(?i)internal server error`),
	regexp.MustCompile(`(?i)service (temporarily )?unavailable`),
	regexp.MustCompile(`(?i)sign in to continue`),
	regexp.MustCompile(`(?i)log ?in (to|required to) (view|read|continue)`),
	regexp.MustCompile(`(?i)create (an|a free) account to`),
	regexp.MustCompile(`(?i)subscribe (now )?to (read|continue|view)`),
	regexp.MustCompile(`(?i)subscription required`),
	regexp.MustCompile(`(?i)register to continue`),
	regexp.MustCompile(`(?i)please enable javascript`),
	regexp.MustCompile(`(?i)javascript is (required|disabled|not enabled)`),
	regexp.MustCompile(`(?i)enable cookies`),
	regexp.MustCompile(`(?i)\bcaptcha\b`),
	regexp.MustCompile(`(?i)verify (that )?you('?re| are) (a )?human`),
	regexp.MustCompile(`(?i)are you a robot`),
	regexp.MustCompile(`(?i)checking your browser`),
	regexp.MustCompile(`(?i)unusual traffic from your`),
}

// Score rates markdown content from 0 to 100. Deductions are cumulative and
// the score never drops below zero. sourceHTMLLen is the byte length of the
// HTML the markdown was derived from; pass 0 when unknown.
//
// Score is pure and performs no I/O.
func Score(markdown string, sourceHTMLLen int) models.QualityVerdict {
	v := models.QualityVerdict{Score: 100}

	stripped := stripText(markdown)
	if stripped == "" {
		v.Score = 0
		v.Issues = append(v.Issues, "no text content")
		return v
	}

	tags := htmlTagRe.FindAllString(markdown, -1)
	tagCount := len(tags)
	tableCount := len(tableTagRe.FindAllString(markdown, -1))

	switch {
	case len(stripped) < 50:
		deduct(&v, 50, true, fmt.Sprintf("content too short (%d chars)", len(stripped)))
	case len(stripped) < 200 && (tagCount > 50 || tableCount > 20):
		deduct(&v, 30, true, "short content dominated by unconverted markup")
	case len(stripped) < 300:
		deduct(&v, 15, false, fmt.Sprintf("content is thin (%d chars)", len(stripped)))
	}

	switch {
	case tagCount > 100:
		deduct(&v, 40, true, fmt.Sprintf("%d leftover HTML tags", tagCount))
	case tagCount > 50:
		deduct(&v, 20, false, fmt.Sprintf("%d leftover HTML tags", tagCount))
	case tagCount > 10:
		deduct(&v, 5, false, fmt.Sprintf("%d leftover HTML tags", tagCount))
	}

	if tableCount > 50 {
		deduct(&v, 30, true, fmt.Sprintf("%d unconverted table tags", tableCount))
	}

	if len(markdown) > 0 {
		tagChars := 0
		for _, t := range tags {
			tagChars += len(t)
		}
		ratio := float64(tagChars) / float64(len(markdown))
		switch {
		case ratio > 0.30:
			deduct(&v, 25, true, fmt.Sprintf("HTML makes up %.0f%% of content", ratio*100))
		case ratio > 0.15:
			deduct(&v, 10, false, fmt.Sprintf("HTML makes up %.0f%% of content", ratio*100))
		}
	}

	if scriptOpenRe.MatchString(markdown) {
		deduct(&v, 15, false, "script tag present in markdown")
	}
	if styleOpenRe.MatchString(markdown) {
		deduct(&v, 10, false, "style tag present in markdown")
	}

	if sourceHTMLLen > 10000 {
		ratio := float64(len(stripped)) / float64(sourceHTMLLen)
		switch {
		case ratio < 0.005:
			deduct(&v, 35, true, "extracted almost nothing from a large page")
		case ratio < 0.02:
			deduct(&v, 20, false, "extracted very little from a large page")
		}
	}

	// Boilerplate check is skipped on long content to avoid false positives
	// on real articles that mention e.g. "page not found" in passing.
	if len(stripped) < 2000 {
		for _, re := range boilerplateRes {
			if re.MatchString(stripped) {
				deduct(&v, 40, true, "content looks like an error or access wall page")
				break
			}
		}
	}

	if len(newlineRunRe.FindAllString(markdown, -1)) > 10 {
		deduct(&v, 5, false, "excessive blank line runs")
	}

	return v
}

// stripText removes HTML tags and markdown punctuation, leaving prose.
func stripText(markdown string) string {
	s := htmlTagRe.ReplaceAllString(markdown, "")
	s = mdPunctRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func deduct(v *models.QualityVerdict, points int, issue bool, msg string) {
	v.Score -= points
	if v.Score < 0 {
		v.Score = 0
	}
	if issue {
		v.Issues = append(v.Issues, msg)
	} else {
		v.Warnings = append(v.Warnings, msg)
	}
}
