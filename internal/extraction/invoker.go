package extraction

import (
	"context"

	"docintel/internal/llm"
)

// Invoker sends prepared content with the extraction instructions and returns the raw reply.
// It never retries; failures come back as llm.ErrBlocked or llm.ErrCall.
type Invoker struct {
	provider  llm.Provider
	model     string
	maxTokens int
}

func NewInvoker(provider llm.Provider, model string, maxTokens int) *Invoker {
	return &Invoker{provider: provider, model: model, maxTokens: maxTokens}
}

func (i *Invoker) Invoke(ctx context.Context, c Content) (string, error) {
	return i.provider.Generate(ctx, llm.GenerateRequest{
		Model:     i.model,
		System:    systemPrompt,
		Prompt:    instructions,
		Parts:     c.Parts,
		MaxTokens: i.maxTokens,
	})
}
