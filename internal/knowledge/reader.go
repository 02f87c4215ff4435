package knowledge

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// ReduceContent strips HTML-shaped document bodies down to readable text so
// condensation prompts stay small. Plain-text content passes through
// unchanged, as does anything the extractor cannot improve.
func ReduceContent(content, sourceURL string) string {
	if !looksLikeHTML(content) {
		return content
	}
	article, err := readability.FromReader(strings.NewReader(content), mustParseURL(sourceURL))
	if err != nil {
		return content
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return content
	}
	return text
}

func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div") ||
		strings.Contains(lower, "<p>")
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
