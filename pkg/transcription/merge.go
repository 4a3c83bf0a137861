package transcription

import (
	"sort"
	"strings"

	"ai-notetaking-pipeline/pkg/chunklog"
)

const (
	SourcePrimary   = "primary"
	SourceSecondary = "secondary"
	SourceMixed     = "mixed"
)

// ChunkStats is what the stage handler records under transcriptionChunks.
type ChunkStats struct {
	Total         int `json:"total"`
	FailedPrimary int `json:"failedPrimary"`
	Recovered     int `json:"recovered"`
	Missing       int `json:"missing"`
}

type Merged struct {
	Result
	Provider       string
	Stats          ChunkStats
	MissingIndices []int
}

// Merge rebuilds the transcript from a run's log. Secondary results override
// primary ones for the same index; chunk-local word times are shifted by the
// segment start; the final word list is stably sorted by start time.
func Merge(segments []Segment, entries []chunklog.Entry) Merged {
	primary := map[int]chunklog.Entry{}
	secondary := map[int]chunklog.Entry{}
	for _, e := range entries {
		if !e.OK {
			continue
		}
		switch e.Pass {
		case chunklog.PassSecondary:
			secondary[e.Index] = e
		default:
			primary[e.Index] = e
		}
	}

	out := Merged{Stats: ChunkStats{Total: len(segments)}}
	usedPrimary, usedSecondary := false, false

	for _, seg := range segments {
		entry, ok := secondary[seg.Index]
		fromSecondary := ok
		if _, hadPrimary := primary[seg.Index]; !hadPrimary {
			out.Stats.FailedPrimary++
			if ok {
				out.Stats.Recovered++
			}
		}
		if !ok {
			entry, ok = primary[seg.Index]
		}
		if !ok {
			out.Stats.Missing++
			out.MissingIndices = append(out.MissingIndices, seg.Index)
			continue
		}

		words := chunkWords(entry)
		if len(words) == 0 {
			continue
		}
		if fromSecondary {
			usedSecondary = true
		} else {
			usedPrimary = true
		}
		if out.Language == "" {
			out.Language = entry.Language
		}
		for _, w := range words {
			out.Words = append(out.Words, Word{Word: w.Word, Start: w.Start + seg.Start, End: w.End + seg.Start})
		}
	}

	sort.SliceStable(out.Words, func(i, j int) bool {
		return out.Words[i].Start < out.Words[j].Start
	})

	tokens := make([]string, len(out.Words))
	for i, w := range out.Words {
		tokens[i] = w.Word
	}
	out.Text = strings.Join(tokens, " ")

	switch {
	case usedPrimary && usedSecondary:
		out.Provider = SourceMixed
	case usedSecondary:
		out.Provider = SourceSecondary
	default:
		out.Provider = SourcePrimary
	}
	return out
}

// chunkWords falls back to whitespace tokens at the chunk start when the
// backend returned text without word timings.
func chunkWords(e chunklog.Entry) []chunklog.Word {
	if len(e.Words) > 0 {
		return e.Words
	}
	fields := strings.Fields(e.Text)
	words := make([]chunklog.Word, len(fields))
	for i, f := range fields {
		words[i] = chunklog.Word{Word: f}
	}
	return words
}
