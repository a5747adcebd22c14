package llm

import "docintel/internal/config"

func configFor(provider, anthropicKey, openAIKey string) config.LLMConfig {
	return config.LLMConfig{
		Provider:     provider,
		AnthropicKey: anthropicKey,
		OpenAIKey:    openAIKey,
		TimeoutSec:   5,
	}
}
