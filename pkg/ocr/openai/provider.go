package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"ai-notetaking-pipeline/pkg/llm/openai"
	"ai-notetaking-pipeline/pkg/ocr"
	"ai-notetaking-pipeline/pkg/providererr"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const extractPrompt = "Transcribe all readable text in this image exactly as written. " +
	"Keep the reading order and paragraph breaks. Reply with the text only."

var ErrUnsupportedDocument = errors.New("vision ocr only accepts images")

// VisionProvider reads text out of images with a multimodal chat model.
type VisionProvider struct {
	client sdk.Client
	model  string
}

var _ ocr.Provider = (*VisionProvider)(nil)

func NewVisionProvider(apiKey, model string, opts ...option.RequestOption) (*VisionProvider, error) {
	if apiKey == "" {
		return nil, openai.ErrAPIKeyNotSet
	}
	if model == "" {
		model = openai.DefaultModel
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &VisionProvider{client: sdk.NewClient(reqOpts...), model: model}, nil
}

func (p *VisionProvider) Name() string {
	return "openai-vision"
}

func (p *VisionProvider) Extract(ctx context.Context, doc ocr.Document) (string, error) {
	if doc.IsPDF() {
		// PDFs go to the next provider in the chain.
		return "", providererr.NoResult(p.Name(), ErrUnsupportedDocument)
	}
	mime := doc.MimeType
	if mime == "" {
		mime = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(doc.Bytes))

	params := sdk.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.UserMessage([]sdk.ChatCompletionContentPartUnionParam{
				sdk.TextContentPart(extractPrompt),
				sdk.ImageContentPart(sdk.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Temperature: sdk.Float(0),
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", openai.Classify(err)
	}
	if len(completion.Choices) == 0 {
		return "", providererr.NoResult(p.Name(), errors.New("no completion choices returned"))
	}
	return completion.Choices[0].Message.Content, nil
}
