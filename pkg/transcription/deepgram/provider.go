package deepgram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ai-notetaking-pipeline/pkg/providererr"
	"ai-notetaking-pipeline/pkg/transcription"

	"github.com/goccy/go-json"
)

const DefaultBaseURL = "https://api.deepgram.com/v1/listen"

type Provider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ transcription.Provider = (*Provider)(nil)

func NewProvider(apiKey, baseURL, model string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = "nova-2"
	}
	return &Provider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string `json:"transcript"`
				Words      []struct {
					Word           string  `json:"word"`
					PunctuatedWord string  `json:"punctuated_word"`
					Start          float64 `json:"start"`
					End            float64 `json:"end"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (p *Provider) Name() string {
	return "deepgram"
}

func (p *Provider) Transcribe(ctx context.Context, media transcription.Media, language string) (*transcription.Result, error) {
	q := url.Values{}
	q.Set("model", p.model)
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	if language != "" {
		q.Set("language", language)
	} else {
		q.Set("detect_language", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"?"+q.Encode(), bytes.NewReader(media.Bytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	mime := media.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	req.Header.Set("Content-Type", mime)
	req.Header.Set("Authorization", "Token "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, providererr.FromTransport(p.Name(), err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, providererr.FromHTTP(p.Name(), resp.StatusCode, string(raw))
	}

	var parsed listenResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, providererr.Transient(p.Name(), fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return nil, providererr.NoResult(p.Name(), fmt.Errorf("no alternatives returned"))
	}

	channel := parsed.Results.Channels[0]
	alt := channel.Alternatives[0]
	result := &transcription.Result{
		Text:     alt.Transcript,
		Language: channel.DetectedLanguage,
		Words:    make([]transcription.Word, len(alt.Words)),
	}
	if result.Language == "" {
		result.Language = language
	}
	for i, w := range alt.Words {
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		result.Words[i] = transcription.Word{Word: text, Start: w.Start, End: w.End}
	}
	return result, nil
}
