package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitText splits text into chunks of at most chunkSize runes, with overlap
// runes repeated at the start of the next chunk. A chunk ends on whitespace
// when one sits in its last quarter.
func SplitText(text string, chunkSize int, overlap int) []string {
	if chunkSize <= 0 || utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}
	}

	runes := []rune(text)
	total := len(runes)
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < total; {
		end := start + chunkSize
		if end >= total {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		end = breakAt(runes, start, end)
		chunks = append(chunks, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// Truncate keeps the first maxRunes runes of text, cutting back to the last
// word boundary when one is close.
func Truncate(text string, maxRunes int) string {
	return strings.TrimSpace(SplitText(text, maxRunes, 0)[0])
}

func breakAt(runes []rune, start, end int) int {
	floor := end - (end-start)/4
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
