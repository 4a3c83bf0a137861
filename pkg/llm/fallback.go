package llm

import (
	"context"
	"strings"

	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/pkg/fallback"
)

// Fallback asks the primary model first and the secondary only when the
// primary produced nothing usable. Invalid JSON or a schema violation from the
// primary goes to the secondary before the primary is ever asked again.
type Fallback struct {
	providers []LLMProvider
	chain     *fallback.Chain[string]
}

func NewFallback(log logger.ILogger, providers ...LLMProvider) *Fallback {
	var usable []LLMProvider
	for _, p := range providers {
		if p != nil {
			usable = append(usable, p)
		}
	}
	isEmpty := func(s string) bool { return strings.TrimSpace(s) == "" }
	return &Fallback{
		providers: usable,
		chain:     fallback.NewChain[string]("llm", isEmpty, fallback.DefaultBreakerConfig(), log),
	}
}

// GenerateValidated returns the first response accepted by validate together
// with the provider name. validate may be nil.
func (f *Fallback) GenerateValidated(ctx context.Context, prompt string, validate func(string) error, opts ...Option) (string, string, error) {
	candidates := make([]fallback.Candidate[string], len(f.providers))
	for i, p := range f.providers {
		provider := p
		candidates[i] = fallback.Candidate[string]{
			Name: provider.Name(),
			Call: func(ctx context.Context) (string, error) {
				return provider.Generate(ctx, prompt, opts...)
			},
		}
	}
	return f.chain.Run(ctx, validate, candidates...)
}
