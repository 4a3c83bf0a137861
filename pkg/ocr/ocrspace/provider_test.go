package ocrspace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-notetaking-pipeline/pkg/ocr"
	"ai-notetaking-pipeline/pkg/providererr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJoinsPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("apikey"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "PDF", r.FormValue("filetype"))
		_, _ = w.Write([]byte(`{"ParsedResults":[{"ParsedText":"one"},{"ParsedText":" "},{"ParsedText":"two"}],"IsErroredOnProcessing":false}`))
	}))
	defer server.Close()

	p := NewProvider("k", server.URL)
	text, err := p.Extract(context.Background(), ocr.Document{Bytes: []byte("%PDF"), Filename: "notes.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "one\n\ntwo", text)
}

func TestExtractProcessingErrorQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"IsErroredOnProcessing":true,"ErrorMessage":["Daily API quota reached for this key"]}`))
	}))
	defer server.Close()

	p := NewProvider("k", server.URL)
	_, err := p.Extract(context.Background(), ocr.Document{Bytes: []byte("x"), Filename: "a.png"})
	require.Error(t, err)
	assert.True(t, providererr.IsQuota(err))
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "a; b", errorText([]byte(`["a","b"]`)))
	assert.Equal(t, "bad", errorText([]byte(`"bad"`)))
	assert.Equal(t, "unknown error", errorText(nil))
}
