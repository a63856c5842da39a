package categorize

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicCategorizer labels conversations with a Claude model.
type AnthropicCategorizer struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicCategorizer creates a new Anthropic-backed categorizer.
func NewAnthropicCategorizer(apiKey string) (*AnthropicCategorizer, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	return &AnthropicCategorizer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  "claude-3-5-haiku-20241022",
	}, nil
}

// Name returns the provider name.
func (c *AnthropicCategorizer) Name() string {
	return string(ProviderAnthropic)
}

// Categorize implements Categorizer.
func (c *AnthropicCategorizer) Categorize(ctx context.Context, title string, sample []string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(c.model),
		MaxTokens: anthropic.F(int64(8)),
		System: anthropic.F([]anthropic.TextBlockParam{
			{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(categoryPrompt()),
			},
		}),
		Messages: anthropic.F([]anthropic.MessageParam{
			{
				Role: anthropic.F(anthropic.MessageParamRoleUser),
				Content: anthropic.F([]anthropic.MessageParamContentUnion{
					anthropic.TextBlockParam{
						Type: anthropic.F(anthropic.TextBlockParamTypeText),
						Text: anthropic.F(categoryInput(title, sample)),
					},
				}),
			},
		}),
	})
	if err != nil {
		return "", err
	}

	var label string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			label += block.Text
		}
	}
	label = strings.TrimSpace(label)
	if !validCategory(label) {
		return "", nil
	}
	return label, nil
}
