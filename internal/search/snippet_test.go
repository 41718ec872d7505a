package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippetBlankQueryReturnsFullContent(t *testing.T) {
	content := strings.Repeat("x", 500)
	assert.Equal(t, content, Snippet(content, ""))
	assert.Equal(t, content, Snippet(content, "   "))
}

func TestSnippetShortContentReturnedVerbatim(t *testing.T) {
	content := "short document body"
	assert.Equal(t, content, Snippet(content, "missing"))
	assert.Equal(t, content, Snippet(strings.Repeat("a", 150), "zzz"))
}

func TestSnippetQueryNotFoundTruncatesHead(t *testing.T) {
	content := strings.Repeat("a", 200)
	got := Snippet(content, "needle")
	assert.Equal(t, strings.Repeat("a", 150)+"...", got)
	assert.Len(t, got, 153)
}

func TestSnippetMatchNearStart(t *testing.T) {
	// Match at offset 20: window starts at 0, so no leading ellipsis, but
	// the content extends beyond the window, so a trailing one is added.
	content := strings.Repeat("a", 20) + "needle" + strings.Repeat("b", 200)
	got := Snippet(content, "needle")
	assert.False(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Contains(t, got, "needle")
	// 20 leading chars + match + 100 following chars + trailing ellipsis.
	assert.Len(t, got, 20+len("needle")+100+3)
}

func TestSnippetMatchMidContent(t *testing.T) {
	content := strings.Repeat("a", 100) + "needle" + strings.Repeat("b", 200)
	got := Snippet(content, "needle")
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "..."+strings.Repeat("a", 50)+"needle"+strings.Repeat("b", 100)+"...", got)
}

func TestSnippetMatchNearEnd(t *testing.T) {
	content := strings.Repeat("a", 200) + "needle"
	got := Snippet(content, "needle")
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.False(t, strings.HasSuffix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "needle"))
}

func TestSnippetCaseInsensitiveMatch(t *testing.T) {
	content := strings.Repeat("a", 100) + "NeEdLe" + strings.Repeat("b", 200)
	got := Snippet(content, "needle")
	assert.Contains(t, got, "NeEdLe")
}
