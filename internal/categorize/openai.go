package categorize

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAICategorizer labels conversations with an OpenAI chat model.
type OpenAICategorizer struct {
	client *openai.Client
	model  string
}

// NewOpenAICategorizer creates a new OpenAI-backed categorizer.
func NewOpenAICategorizer(apiKey string) (*OpenAICategorizer, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return &OpenAICategorizer{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}, nil
}

// Name returns the provider name.
func (c *OpenAICategorizer) Name() string {
	return string(ProviderOpenAI)
}

// Categorize implements Categorizer.
func (c *OpenAICategorizer) Categorize(ctx context.Context, title string, sample []string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   8,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: categoryPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: categoryInput(title, sample),
			},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	label := strings.TrimSpace(resp.Choices[0].Message.Content)
	if !validCategory(label) {
		return "", nil
	}
	return label, nil
}

func categoryPrompt() string {
	return "Classify the conversation into exactly one of these categories: " +
		strings.Join(Categories, ", ") +
		". Reply with the category name only, or None if nothing fits."
}

func categoryInput(title string, sample []string) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(title)
	for _, s := range sample {
		b.WriteString("\n---\n")
		if len(s) > 500 {
			s = s[:500]
		}
		b.WriteString(s)
	}
	return b.String()
}
