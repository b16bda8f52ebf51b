package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeywords_LowercasesAndStripsPunctuation(t *testing.T) {
	tokens := Keywords("Remember: buy MILK, eggs & bread!")
	require.Equal(t, []string{"remember", "buy", "milk", "eggs", "bread"}, tokens)
}

func TestKeywords_DropsStopwordsAndShortTokens(t *testing.T) {
	tokens := Keywords("the cat is on a go mat")
	require.Equal(t, []string{"cat", "mat"}, tokens)
}

func TestKeywords_DedupesPreservingFirstSeenOrder(t *testing.T) {
	tokens := Keywords("kitten pictures kitten more kitten pictures")
	require.Equal(t, []string{"kitten", "pictures", "more"}, tokens)
}

func TestKeywords_KeepsDigitsAndUnderscore(t *testing.T) {
	tokens := Keywords("room_42 opens 2026")
	require.Equal(t, []string{"room_42", "opens", "2026"}, tokens)
}

func TestKeywords_EmptyText(t *testing.T) {
	require.Empty(t, Keywords(""))
	require.Empty(t, Keywords("!!! ??? ..."))
}

func TestSnippet_ShortTextUnchanged(t *testing.T) {
	require.Equal(t, "hello", Snippet("hello"))
}

func TestSnippet_ExactLimitUnchanged(t *testing.T) {
	text := strings.Repeat("a", snippetLen)
	require.Equal(t, text, Snippet(text))
}

func TestSnippet_LongTextTruncatedWithEllipsis(t *testing.T) {
	text := strings.Repeat("a", snippetLen+50)
	got := Snippet(text)
	require.Len(t, []rune(got), snippetLen+3)
	require.True(t, strings.HasSuffix(got, "..."))
}
