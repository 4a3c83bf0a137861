package openai

import (
	"bytes"
	"context"
	"strings"

	"ai-notetaking-pipeline/pkg/llm/openai"
	"ai-notetaking-pipeline/pkg/transcription"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const DefaultModel = "whisper-1"

// WhisperProvider requests verbose JSON so word timings come back with the text.
type WhisperProvider struct {
	client sdk.Client
	model  string
}

var _ transcription.Provider = (*WhisperProvider)(nil)

type verboseTranscript struct {
	Text     string               `json:"text"`
	Language string               `json:"language"`
	Words    []transcription.Word `json:"words"`
}

func NewWhisperProvider(apiKey, model string, opts ...option.RequestOption) (*WhisperProvider, error) {
	if apiKey == "" {
		return nil, openai.ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultModel
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &WhisperProvider{client: sdk.NewClient(reqOpts...), model: model}, nil
}

func (p *WhisperProvider) Name() string {
	return "openai-whisper"
}

func (p *WhisperProvider) Transcribe(ctx context.Context, media transcription.Media, language string) (*transcription.Result, error) {
	params := sdk.AudioTranscriptionNewParams{
		File:                   sdk.File(bytes.NewReader(media.Bytes), media.Filename, media.MimeType),
		Model:                  sdk.AudioModel(p.model),
		ResponseFormat:         sdk.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word"},
	}
	if language != "" {
		params.Language = sdk.String(language)
	}

	var verbose verboseTranscript
	if _, err := p.client.Audio.Transcriptions.New(ctx, params, option.WithResponseBodyInto(&verbose)); err != nil {
		return nil, openai.Classify(err)
	}

	return &transcription.Result{
		Text:     strings.TrimSpace(verbose.Text),
		Words:    verbose.Words,
		Language: verbose.Language,
	}, nil
}
