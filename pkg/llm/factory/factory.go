package factory

import (
	"fmt"

	"aig-pipeline-be/pkg/llm"
	"aig-pipeline-be/pkg/llm/huggingface"
	"aig-pipeline-be/pkg/llm/ollama"
	"aig-pipeline-be/pkg/llm/openai"
)

// ProviderSpec describes one entry of the fallback cascade. Which concrete
// backend serves a spec is pure configuration; priority is list order.
type ProviderSpec struct {
	Name    string // "openrouter", "groq", "ollama", ...
	Kind    string // "openai" (any OpenAI-compatible endpoint), "ollama", or "huggingface"
	BaseURL string
	APIKey  string
	Model   string
}

// NewProvider builds a single provider from its spec.
func NewProvider(spec ProviderSpec) (llm.LLMProvider, error) {
	switch spec.Kind {
	case "openai":
		if spec.APIKey == "" {
			return nil, fmt.Errorf("provider %s: api key missing", spec.Name)
		}
		return openai.NewOpenAIProvider(spec.BaseURL, spec.APIKey, spec.Model), nil
	case "ollama":
		baseURL := spec.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, spec.Model), nil
	case "huggingface":
		if spec.APIKey == "" {
			return nil, fmt.Errorf("provider %s: api key missing", spec.Name)
		}
		return huggingface.NewHuggingFaceProvider(spec.APIKey, spec.BaseURL, spec.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider kind: %s", spec.Kind)
	}
}

// NewChain builds the ordered provider cascade. Specs that cannot be built
// (e.g. missing API key for an optional fallback) are skipped; at least one
// provider must survive.
func NewChain(specs []ProviderSpec) ([]llm.NamedProvider, error) {
	chain := make([]llm.NamedProvider, 0, len(specs))
	for _, spec := range specs {
		p, err := NewProvider(spec)
		if err != nil {
			continue
		}
		chain = append(chain, llm.NamedProvider{Name: spec.Name, LLMProvider: p})
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no usable LLM provider configured")
	}
	return chain, nil
}
