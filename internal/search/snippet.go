package search

import "strings"

const (
	// snippetThreshold is the content length below which the full content
	// is returned untrimmed.
	snippetThreshold = 150
	// snippetBefore and snippetAfter bound the window cut around the first
	// case-insensitive occurrence of the query.
	snippetBefore = 50
	snippetAfter  = 100
)

// Snippet returns a bounded excerpt of content centred on the first
// case-insensitive occurrence of query. It is a pure function of its
// inputs: no engine call is involved.
func Snippet(content, query string) string {
	if strings.TrimSpace(query) == "" {
		return content
	}
	if len(content) <= snippetThreshold {
		return content
	}

	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx < 0 {
		return content[:snippetThreshold] + "..."
	}

	start := max(0, idx-snippetBefore)
	end := min(len(content), idx+len(query)+snippetAfter)

	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}
