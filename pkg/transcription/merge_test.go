package transcription

import (
	"testing"

	"ai-notetaking-pipeline/pkg/chunklog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segmentsOf(n int, length float64) []Segment {
	segs := make([]Segment, n)
	for i := range segs {
		segs[i] = Segment{Index: i, Start: float64(i) * length, Duration: length}
	}
	return segs
}

func TestMergeOrdersWordsByStart(t *testing.T) {
	segs := segmentsOf(3, 10)
	// Entries arrive out of order, as concurrent workers append them.
	entries := []chunklog.Entry{
		{Index: 2, Pass: chunklog.PassPrimary, OK: true, Words: []chunklog.Word{{Word: "e", Start: 1, End: 2}}},
		{Index: 0, Pass: chunklog.PassPrimary, OK: true, Language: "en", Words: []chunklog.Word{{Word: "b", Start: 3, End: 4}, {Word: "a", Start: 1, End: 2}}},
		{Index: 1, Pass: chunklog.PassPrimary, OK: true, Words: []chunklog.Word{{Word: "c", Start: 0, End: 1}, {Word: "d", Start: 5, End: 6}}},
	}

	m := Merge(segs, entries)
	require.Len(t, m.Words, 5)
	for i := 1; i < len(m.Words); i++ {
		assert.LessOrEqual(t, m.Words[i-1].Start, m.Words[i].Start)
	}
	assert.Equal(t, "a b c d e", m.Text)
	assert.Equal(t, 21.0, m.Words[4].Start)
	assert.Equal(t, "en", m.Language)
	assert.Equal(t, SourcePrimary, m.Provider)
	assert.Equal(t, ChunkStats{Total: 3}, m.Stats)
}

func TestMergeSecondaryOverridesAndMissing(t *testing.T) {
	segs := segmentsOf(3, 10)
	entries := []chunklog.Entry{
		{Index: 0, Pass: chunklog.PassPrimary, OK: true, Words: []chunklog.Word{{Word: "zero", Start: 1}}},
		{Index: 1, Pass: chunklog.PassPrimary, Error: "timeout"},
		{Index: 2, Pass: chunklog.PassPrimary, Error: "timeout"},
		{Index: 1, Pass: chunklog.PassSecondary, OK: true, Text: "one more"},
		{Index: 2, Pass: chunklog.PassSecondary, Error: "still down"},
	}

	m := Merge(segs, entries)
	assert.Equal(t, "zero one more", m.Text)
	assert.Equal(t, SourceMixed, m.Provider)
	assert.Equal(t, []int{2}, m.MissingIndices)
	assert.Equal(t, ChunkStats{Total: 3, FailedPrimary: 2, Recovered: 1, Missing: 1}, m.Stats)
	// Text-only chunks are pinned to the chunk start.
	assert.Equal(t, 10.0, m.Words[1].Start)
}

func TestMergeEveryChunkExactlyOnce(t *testing.T) {
	segs := segmentsOf(4, 600)
	var entries []chunklog.Entry
	for _, s := range segs {
		entries = append(entries, chunklog.Entry{
			Index: s.Index, Pass: chunklog.PassPrimary, OK: true,
			Words: []chunklog.Word{{Word: "w", Start: 0}, {Word: "x", Start: 300}},
		})
	}
	// A redelivered secondary result for chunk 3 replaces, never duplicates.
	entries = append(entries, chunklog.Entry{Index: 3, Pass: chunklog.PassSecondary, OK: true,
		Words: []chunklog.Word{{Word: "w", Start: 0}, {Word: "x", Start: 300}}})

	m := Merge(segs, entries)
	assert.Len(t, m.Words, 8)
}
