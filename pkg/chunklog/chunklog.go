// Package chunklog keeps an append-only record of per-chunk transcription
// outcomes for one run. Workers only ever append; the merge step reads the
// whole run once both passes are done.
package chunklog

import (
	"context"
)

const (
	PassPrimary   = "primary"
	PassSecondary = "secondary"
)

type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Entry is one chunk outcome. Word times are relative to the chunk start.
type Entry struct {
	Index    int     `json:"index"`
	Pass     string  `json:"pass"`
	Provider string  `json:"provider"`
	OK       bool    `json:"ok"`
	Attempts int     `json:"attempts"`
	Text     string  `json:"text,omitempty"`
	Language string  `json:"language,omitempty"`
	Words    []Word  `json:"words,omitempty"`
	Error    string  `json:"error,omitempty"`
	Start    float64 `json:"start"`
}

type Log interface {
	Append(ctx context.Context, run string, entry Entry) error
	Entries(ctx context.Context, run string) ([]Entry, error)
	Drop(ctx context.Context, run string) error
}
