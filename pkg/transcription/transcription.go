package transcription

import (
	"context"
	"errors"
)

var (
	// ErrNoTranscript means every chunk came back without a single word.
	ErrNoTranscript = errors.New("transcription produced no words")
)

// Media is one audio file (or chunk) handed to a speech-to-text backend.
type Media struct {
	Bytes    []byte
	Filename string
	MimeType string
}

type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type Result struct {
	Text     string
	Words    []Word
	Language string
}

// Provider transcribes a single file. It is never asked to split media.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, media Media, language string) (*Result, error)
}

// Splitter probes and cuts media files.
type Splitter interface {
	Duration(ctx context.Context, path string) (float64, error)
	Extract(ctx context.Context, path string, seg Segment, outPath string) error
}
