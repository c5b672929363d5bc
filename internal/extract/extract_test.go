package extract

import (
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Understanding Goroutines</title></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Understanding Goroutines</h1>
<p>Goroutines are lightweight threads managed by the Go runtime. They are
cheap to create and the scheduler multiplexes them onto operating system
threads, which makes concurrent designs practical at a scale that native
threads cannot match.</p>
<p>Channels complement goroutines by giving them a way to communicate.
Rather than sharing memory and guarding it with locks, idiomatic programs
pass values between goroutines and let the type system enforce ownership.
This second paragraph exists to give the readability pass enough prose to
treat the article element as the main content of the page.</p>
<p>Select statements round out the toolkit. A goroutine can wait on several
channel operations at once and act on whichever becomes ready first, which
is the foundation for timeouts, cancellation and fan-in patterns found in
most long-running services.</p>
</article>
<footer>Copyright 2026</footer>
</body>
</html>`

func TestExtract_Article(t *testing.T) {
	article, err := New().Extract(articleHTML, "https://example.com/goroutines")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if article.Title != "Understanding Goroutines" {
		t.Errorf("Title = %q, want Understanding Goroutines", article.Title)
	}
	for _, want := range []string{"lightweight threads", "Channels complement goroutines"} {
		if !strings.Contains(article.Markdown, want) {
			t.Errorf("Markdown missing %q:\n%s", want, article.Markdown)
		}
	}
	if strings.Contains(article.Markdown, "<p>") {
		t.Errorf("Markdown still contains HTML tags:\n%s", article.Markdown)
	}
	if strings.Contains(article.Markdown, "\n\n\n") {
		t.Error("Markdown contains runs of blank lines")
	}
}

func TestExtract_EmptyPage(t *testing.T) {
	_, err := New().Extract("<html><body></body></html>", "https://example.com")
	if err == nil {
		t.Fatal("Extract() on an empty page should fail")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"keeps single blank line", "a\n\nb", "a\n\nb"},
		{"trims edges", "\n\n  text  \n\n", "text"},
		{"windows line endings", "a\r\n\r\n\r\nb", "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsMarkdown(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		body        string
		want        bool
	}{
		{"markdown content type", "https://x.com/page", "text/markdown; charset=utf-8", "anything", true},
		{"x-markdown content type", "https://x.com/page", "text/x-markdown", "anything", true},
		{"md extension", "https://raw.example.com/README.md", "text/plain", "plain words", true},
		{"markdown extension", "https://x.com/doc.MARKDOWN", "text/plain", "plain words", true},
		{"heading heuristic", "https://x.com/page", "text/plain", "# Title\n\nbody", true},
		{"list heuristic", "https://x.com/page", "text/plain", "- one\n- two", true},
		{"link heuristic", "https://x.com/page", "text/plain", "see [docs](https://x.com)", true},
		{"plain prose", "https://x.com/page", "text/plain", "nothing markdownish here", false},
		{"html body", "https://x.com/page", "text/plain", "<!DOCTYPE html><html># not md</html>", false},
		{"html content type with heading", "https://x.com/page", "text/html", "<html><h1># hi</h1></html>", false},
		{"empty body", "https://x.com/page", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMarkdown(tt.url, tt.contentType, tt.body); got != tt.want {
				t.Errorf("IsMarkdown(%q, %q, %.30q) = %v, want %v",
					tt.url, tt.contentType, tt.body, got, tt.want)
			}
		})
	}
}

func TestMarkdownTitle(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"h1", "# My Title\n\nbody", "My Title"},
		{"h2 first", "intro line\n## Section\nbody", "Section"},
		{"indented heading", "  ## Padded\n", "Padded"},
		{"no heading", "just prose\nmore prose", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarkdownTitle(tt.body); got != tt.want {
				t.Errorf("MarkdownTitle(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}
