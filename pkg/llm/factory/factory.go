package factory

import (
	"fmt"

	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/pkg/llm"
	"ai-notetaking-pipeline/pkg/llm/huggingface"
	"ai-notetaking-pipeline/pkg/llm/ollama"
	"ai-notetaking-pipeline/pkg/llm/openai"
)

// Spec selects one backend. Provider is "openai", "ollama", "huggingface" or
// empty for none.
type Spec struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

func NewLLMProvider(spec Spec) (llm.LLMProvider, error) {
	switch spec.Provider {
	case "openai":
		return openai.NewOpenAIProvider(spec.APIKey, spec.Model)
	case "ollama":
		baseURL := spec.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, spec.Model), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(spec.APIKey, spec.BaseURL, spec.Model), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", spec.Provider)
	}
}

// NewFallback builds the primary/secondary pair used for structure generation.
// Either side may be empty, not both.
func NewFallback(primary, secondary Spec, log logger.ILogger) (*llm.Fallback, error) {
	first, err := NewLLMProvider(primary)
	if err != nil {
		return nil, fmt.Errorf("primary llm: %w", err)
	}
	second, err := NewLLMProvider(secondary)
	if err != nil {
		return nil, fmt.Errorf("secondary llm: %w", err)
	}
	if first == nil && second == nil {
		return nil, fmt.Errorf("no llm provider configured")
	}
	return llm.NewFallback(log, first, second), nil
}
