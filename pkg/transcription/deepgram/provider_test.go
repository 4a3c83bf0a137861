package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-notetaking-pipeline/pkg/providererr"
	"ai-notetaking-pipeline/pkg/transcription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribeParsesWords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token dg", r.Header.Get("Authorization"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"hello world",
			"words":[{"word":"hello","punctuated_word":"Hello","start":0.1,"end":0.4},{"word":"world","start":0.5,"end":0.9}]}]}]}}`))
	}))
	defer server.Close()

	p := NewProvider("dg", server.URL, "")
	res, err := p.Transcribe(context.Background(), transcription.Media{Bytes: []byte("RIFF"), Filename: "a.wav", MimeType: "audio/wav"}, "en")
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, "en", res.Language)
	require.Len(t, res.Words, 2)
	assert.Equal(t, "Hello", res.Words[0].Word)
	assert.Equal(t, "world", res.Words[1].Word)
}

func TestTranscribeQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"err_msg":"Project does not have enough credits"}`))
	}))
	defer server.Close()

	_, err := NewProvider("dg", server.URL, "").Transcribe(context.Background(), transcription.Media{}, "")
	assert.True(t, providererr.IsQuota(err))
}
