package ocr

import (
	"context"
	"errors"
	"testing"

	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/pkg/fallback"
	"ai-notetaking-pipeline/pkg/providererr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOCR struct {
	name string
	text string
	err  error
}

func (f fakeOCR) Name() string { return f.name }

func (f fakeOCR) Extract(ctx context.Context, doc Document) (string, error) {
	return f.text, f.err
}

func TestFallbackReportsProviderUsed(t *testing.T) {
	f := NewFallback(logger.NewNopLogger(),
		fakeOCR{name: "vision", err: providererr.Quota("vision", errors.New("insufficient_quota"))},
		fakeOCR{name: "ocrspace", text: "  page one  "},
	)

	res, err := f.Extract(context.Background(), Document{Bytes: []byte("x"), Filename: "a.png", MimeType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "page one", res.Text)
	assert.Equal(t, "ocrspace", res.Provider)
}

func TestFallbackBlankTextIsNoResult(t *testing.T) {
	f := NewFallback(logger.NewNopLogger(), fakeOCR{name: "vision", text: "\n"})
	_, err := f.Extract(context.Background(), Document{})
	assert.ErrorIs(t, err, fallback.ErrAllFailed)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, Document{Filename: "Lecture.PDF"}.IsPDF())
	assert.True(t, Document{MimeType: "application/pdf"}.IsPDF())
	assert.False(t, Document{Filename: "scan.jpg", MimeType: "image/jpeg"}.IsPDF())
}
