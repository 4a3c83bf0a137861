package ocr

import (
	"context"
	"strings"

	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/pkg/fallback"
)

// Document is the full file handed to an OCR backend.
type Document struct {
	Bytes    []byte
	Filename string
	MimeType string
}

func (d Document) IsPDF() bool {
	return d.MimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(d.Filename), ".pdf")
}

type Result struct {
	Text     string
	Provider string
}

type Provider interface {
	Name() string
	Extract(ctx context.Context, doc Document) (string, error)
}

// Fallback runs providers in order and reports the one whose text was used.
type Fallback struct {
	providers []Provider
	chain     *fallback.Chain[string]
}

func NewFallback(log logger.ILogger, providers ...Provider) *Fallback {
	var usable []Provider
	for _, p := range providers {
		if p != nil {
			usable = append(usable, p)
		}
	}
	isEmpty := func(s string) bool { return strings.TrimSpace(s) == "" }
	return &Fallback{
		providers: usable,
		chain:     fallback.NewChain[string]("ocr", isEmpty, fallback.DefaultBreakerConfig(), log),
	}
}

func (f *Fallback) Extract(ctx context.Context, doc Document) (Result, error) {
	candidates := make([]fallback.Candidate[string], 0, len(f.providers))
	for _, p := range f.providers {
		provider := p
		candidates = append(candidates, fallback.Candidate[string]{
			Name: provider.Name(),
			Call: func(ctx context.Context) (string, error) {
				return provider.Extract(ctx, doc)
			},
		})
	}
	text, name, err := f.chain.Run(ctx, nil, candidates...)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: strings.TrimSpace(text), Provider: name}, nil
}
