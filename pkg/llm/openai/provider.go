package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-notetaking-pipeline/pkg/llm"
	"ai-notetaking-pipeline/pkg/providererr"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

type OpenAIProvider struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

var _ llm.LLMProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider builds a chat-completions backend. Retries are left to the
// fallback chain and the job queue, so the SDK's own retry loop is disabled.
func NewOpenAIProvider(apiKey, model string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultModel
	}
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &OpenAIProvider{
		client:  openai.NewClient(reqOpts...),
		model:   model,
		timeout: DefaultTimeout,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := llm.Apply(llm.Options{Model: p.model, Temperature: 0.7}, options...)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant", "model":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(opts.Model),
		Messages:    messages,
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		}
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}
	if len(completion.Choices) == 0 {
		return "", providererr.NoResult(p.Name(), fmt.Errorf("no completion choices returned"))
	}
	return completion.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

// classify maps SDK errors onto the provider error taxonomy. It is shared by
// every OpenAI-backed adapter in the repository.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return providererr.FromHTTP("openai", apiErr.StatusCode, apiErr.Error())
	}
	return providererr.FromTransport("openai", err)
}

// Classify is classify for adapters outside this package.
func Classify(err error) error {
	return classify(err)
}
