package llm

import (
	"context"
	"log/slog"
	"strings"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/llm/prompts"
	"github.com/rohankatakam/gitbuddy/internal/models"
)

// Provider represents the LLM provider
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	ProviderNone   Provider = "none" // summaries disabled
)

const (
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultOpenAIModel = "gpt-4o-mini"

	summaryTemperature     = 0.4
	summaryMaxOutputTokens = 256
)

// SummaryRequest is one file of a resolved commit to summarize
type SummaryRequest struct {
	Repository    string
	CommitSHA     string
	CommitMessage string
	File          models.FileChange
}

// Summarizer produces a short natural-language summary of a file change
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// Config selects and configures a provider
type Config struct {
	Provider      Provider
	GeminiKey     string
	GeminiModel   string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
}

// NewSummarizer builds the configured provider. A provider without its API key
// degrades to the no-op summarizer with a warning, as summaries are optional.
func NewSummarizer(ctx context.Context, cfg Config) (Summarizer, error) {
	logger := slog.Default().With("component", "llm")

	provider := Provider(strings.ToLower(string(cfg.Provider)))
	if provider == "" {
		provider = ProviderGemini
	}

	switch provider {
	case ProviderNone:
		return NoopSummarizer{}, nil
	case ProviderGemini:
		if cfg.GeminiKey == "" {
			logger.Warn("no Gemini API key configured, summaries disabled")
			logger.Info("set GEMINI_API_KEY or run 'gitbuddy configure'")
			return NoopSummarizer{}, nil
		}
		return NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiModel)
	case ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			logger.Warn("no OpenAI API key configured, summaries disabled")
			logger.Info("set OPENAI_API_KEY or run 'gitbuddy configure'")
			return NoopSummarizer{}, nil
		}
		return NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	default:
		return nil, apperrors.ConfigErrorf("unknown llm provider %q (want gemini, openai or none)", cfg.Provider)
	}
}

// NoopSummarizer returns an empty summary
type NoopSummarizer struct{}

func (NoopSummarizer) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	return "", nil
}

func buildPrompt(req SummaryRequest) string {
	in := prompts.CommitSummaryInput{
		Repository:    req.Repository,
		CommitMessage: req.CommitMessage,
		Filename:      req.File.Filename,
		Status:        string(req.File.Status),
		Additions:     req.File.Additions,
		Deletions:     req.File.Deletions,
		HasPatch:      req.File.HasPatch(),
	}
	if in.HasPatch {
		in.Patch = *req.File.Patch
	}
	return prompts.CommitSummaryUser(in)
}

// EstimateTokens approximates prompt plus completion tokens at four bytes per token
func EstimateTokens(req SummaryRequest) int64 {
	return int64(len(prompts.CommitSummarySystem)+len(buildPrompt(req)))/4 + summaryMaxOutputTokens
}

func cleanSummary(s string) string {
	return strings.TrimSpace(s)
}
