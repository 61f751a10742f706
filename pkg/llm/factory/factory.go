package factory

import (
	"fmt"
	"time"

	"virtualrag-be/pkg/llm"
	"virtualrag-be/pkg/llm/ollama"
)

func NewLLMProvider(providerType, modelName, baseURL string, temperature float64, timeout time.Duration) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		p := ollama.NewOllamaProvider(baseURL, modelName, timeout)
		p.Temperature = temperature
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
