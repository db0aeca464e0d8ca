package llm

import (
	"context"
	"log/slog"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/llm/prompts"
	"google.golang.org/genai"
)

// GeminiClient summarizes file changes with Google's Generative AI SDK
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiClient creates a new Gemini API client
// model: Model name (e.g., "gemini-2.0-flash", "gemini-1.5-pro")
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, apperrors.ConfigError("gemini api key is required")
	}

	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindConfig, "create gemini client")
	}

	logger := slog.Default().With("component", "gemini", "model", model)
	logger.Debug("gemini client initialized")

	return &GeminiClient{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// Summarize sends the change to Gemini and returns the summary text
func (c *GeminiClient) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	userPrompt := buildPrompt(req)

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.Text(prompts.CommitSummarySystem)[0],
		Temperature:       ptrFloat32(summaryTemperature),
		MaxOutputTokens:   summaryMaxOutputTokens,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), genConfig)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.Cancelled(ctx.Err())
		}
		return "", apperrors.Wrap(err, apperrors.KindExternal, "gemini completion failed")
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}

	c.logger.Debug("gemini summary",
		"file", req.File.Filename,
		"prompt_length", len(userPrompt),
		"response_length", len(text),
	)
	return cleanSummary(text), nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", apperrors.New(apperrors.KindExternal, "gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", apperrors.New(apperrors.KindExternal, "gemini returned no content parts")
	}

	var text string
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text += part.Text
		}
	}
	return text, nil
}

func ptrFloat32(f float64) *float32 {
	f32 := float32(f)
	return &f32
}
