package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient generates completions through the OpenAI chat API or any
// OpenAI-compatible endpoint (base URL override).
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIClient creates an OpenAI-compatible completion client.
// baseURL may be empty for the default endpoint.
func NewOpenAIClient(apiKey, model, baseURL string, logger *zap.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}, nil
}

// Complete sends a single-turn prompt and returns the text response.
func (o *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return o.chat(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt under a system message.
func (o *OpenAIClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	return o.chat(ctx, system, user)
}

func (o *OpenAIClient) chat(ctx context.Context, system, user string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	text := resp.Choices[0].Message.Content
	o.logger.Debug("openai completion",
		zap.String("model", o.model),
		zap.Int("prompt_len", len(user)),
		zap.Int("response_len", len(text)))
	return text, nil
}
