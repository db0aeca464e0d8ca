package llm

import (
	"context"
	stderrors "errors"
	"log/slog"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/llm/prompts"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient summarizes file changes with the chat completions API
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIClient creates an OpenAI client. baseURL is optional.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: slog.Default().With("component", "openai", "model", model),
	}
}

// Summarize sends the change to OpenAI and returns the summary text
func (c *OpenAIClient) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	userPrompt := buildPrompt(req)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompts.CommitSummarySystem,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxOutputTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.Cancelled(ctx.Err())
		}
		return "", mapOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.New(apperrors.KindExternal, "openai returned no choices")
	}

	summary := resp.Choices[0].Message.Content
	c.logger.Debug("openai summary",
		"file", req.File.Filename,
		"prompt_length", len(userPrompt),
		"response_length", len(summary),
		"tokens_used", resp.Usage.TotalTokens,
	)
	return cleanSummary(summary), nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return apperrors.Wrap(err, apperrors.KindUnauthorized, "openai rejected the api key")
		case 429:
			return apperrors.Wrap(err, apperrors.KindRateLimited, "openai rate limit")
		}
		if apiErr.HTTPStatusCode >= 500 {
			return apperrors.Wrap(err, apperrors.KindTransientHost, "openai server error")
		}
	}
	return apperrors.Wrap(err, apperrors.KindExternal, "openai completion failed")
}
