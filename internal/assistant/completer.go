// Package assistant produces replies for the bot account.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are Mizo, a helpful and friendly AI assistant on the Groot1 platform. " +
	"You are knowledgeable and act like a smart friend. Keep answers concise but informative."

// ErrNoModels is returned when no model produced an answer.
var ErrNoModels = errors.New("no completion model produced an answer")

// Completer turns a user prompt into reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAICompleter talks to any OpenAI compatible chat completion endpoint,
// trying the configured models in order until one answers.
type OpenAICompleter struct {
	client *openai.Client
	models []string
	log    zerolog.Logger
}

func NewOpenAICompleter(apiKey, baseURL string, models []string, log zerolog.Logger) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		models: models,
		log:    log,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, model := range c.models {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			c.log.Warn().Err(err).Str("model", model).Msg("model failed")
			lastErr = err
			continue
		}
		if len(resp.Choices) > 0 {
			if text := strings.TrimSpace(resp.Choices[0].Message.Content); text != "" {
				c.log.Debug().Str("model", model).Msg("completion succeeded")
				return text, nil
			}
		}
		lastErr = fmt.Errorf("model %s returned an empty answer", model)
	}
	if lastErr == nil {
		return "", ErrNoModels
	}
	return "", fmt.Errorf("%w: %v", ErrNoModels, lastErr)
}
