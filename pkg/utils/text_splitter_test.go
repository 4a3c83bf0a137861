package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShortInput(t *testing.T) {
	assert.Equal(t, []string{"Straße"}, SplitText("Straße", 6, 0))
	assert.Equal(t, []string{"anything"}, SplitText("anything", 0, 0))
}

func TestSplitTextCutsOnRunes(t *testing.T) {
	text := strings.Repeat("ü", 25)
	chunks := SplitText(text, 10, 0)

	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
	assert.Equal(t, 5, utf8.RuneCountInString(chunks[2]))
}

func TestSplitTextPrefersWhitespace(t *testing.T) {
	chunks := SplitText("alpha beta gamma delta", 12, 0)

	require.NotEmpty(t, chunks)
	assert.Equal(t, "alpha beta ", chunks[0])
	assert.Equal(t, "alpha beta gamma delta", strings.Join(chunks, ""))
}

func TestSplitTextOverlap(t *testing.T) {
	chunks := SplitText("abcdefghij", 4, 1)

	assert.Equal(t, []string{"abcd", "defg", "ghij"}, chunks)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Photosynthesis", Truncate("Photosynthesis converts light", 18))
	assert.Equal(t, "日本語", Truncate("日本語のテキスト", 3))
	assert.Equal(t, "short", Truncate("short", 100))
}
