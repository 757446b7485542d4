package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// SelectSnippets returns the trimmed text of every element in rawHTML that
// matches selector, skipping empty ones, in document order, at most n.
func SelectSnippets(rawHTML, selector string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}

	snippets := make([]string, 0, n)
	doc.FindMatcher(matcher).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := strings.TrimSpace(s.Text()); text != "" {
			snippets = append(snippets, text)
		}
		return len(snippets) < n
	})
	return snippets, nil
}
