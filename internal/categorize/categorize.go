// Package categorize assigns category labels to conversations. The
// keyword matcher is the default; LLM-backed providers give better
// labels at the cost of an external call per conversation.
package categorize

import (
	"context"
)

// Categories is the closed label set. The enrichment step never invents
// labels outside it.
var Categories = []string{
	"Technical",
	"Medical",
	"Spiritual",
	"Political",
	"Entertainment",
	"Education",
	"Business",
	"Creative",
}

// Categorizer assigns a category from the closed set, or "" when no
// label fits.
type Categorizer interface {
	// Categorize inspects the conversation title and a sample of
	// message contents.
	Categorize(ctx context.Context, title string, sample []string) (string, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of categorization provider.
type Provider string

const (
	ProviderKeyword   Provider = "keyword"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// New creates a categorizer for the provider.
func New(provider Provider, apiKey string) (Categorizer, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAICategorizer(apiKey)
	case ProviderAnthropic:
		return NewAnthropicCategorizer(apiKey)
	default:
		return NewKeywordCategorizer(), nil
	}
}

func validCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
