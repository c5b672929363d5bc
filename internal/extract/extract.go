// Package extract turns raw HTML into a readable article in markdown form.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// ErrNoArticle is returned when readability finds no article content in the page.
var ErrNoArticle = errors.New("no article found")

// Article is the readable content extracted from one page.
type Article struct {
	Title    string
	Byline   string
	Excerpt  string
	SiteName string
	Markdown string
}

// Extractor converts raw HTML into readable articles.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract runs readability over the HTML and converts the article body to
// markdown. baseURL resolves relative links inside the document.
func (e *Extractor) Extract(htmlContent, baseURL string) (*Article, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(htmlContent), base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoArticle, err)
	}
	if strings.TrimSpace(article.Content) == "" {
		return nil, ErrNoArticle
	}

	markdown, err := htmltomarkdown.ConvertString(article.Content)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = Normalize(markdown)
	if markdown == "" {
		return nil, ErrNoArticle
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = titleFromHTML(htmlContent)
	}

	return &Article{
		Title:    title,
		Byline:   strings.TrimSpace(article.Byline),
		Excerpt:  strings.TrimSpace(article.Excerpt),
		SiteName: strings.TrimSpace(article.SiteName),
		Markdown: markdown,
	}, nil
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// Normalize collapses runs of blank lines and trims surrounding whitespace.
func Normalize(markdown string) string {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	markdown = blankRunRe.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown)
}

// titleFromHTML walks the document for a <title> element.
func titleFromHTML(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(title)
}
