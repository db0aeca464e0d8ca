package llm

import (
	"context"
	"log/slog"

	"github.com/rohankatakam/gitbuddy/internal/cache"
)

// QuotaLimitedSummarizer charges every call against a shared RateLimiter first
type QuotaLimitedSummarizer struct {
	inner   Summarizer
	limiter *RateLimiter
}

// NewQuotaLimitedSummarizer wraps inner with limiter
func NewQuotaLimitedSummarizer(inner Summarizer, limiter *RateLimiter) *QuotaLimitedSummarizer {
	return &QuotaLimitedSummarizer{inner: inner, limiter: limiter}
}

func (s *QuotaLimitedSummarizer) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	if err := s.limiter.CheckAndIncrementWithRetry(ctx, EstimateTokens(req)); err != nil {
		return "", err
	}
	return s.inner.Summarize(ctx, req)
}

// SummaryCache is the subset of cache.RedisClient the cached summarizer needs
type SummaryCache interface {
	Get(ctx context.Context, key string, target interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// CachedSummarizer serves repeat summaries of the same commit file from a cache.
// Cache failures are logged and never fail the call.
type CachedSummarizer struct {
	inner  Summarizer
	cache  SummaryCache
	logger *slog.Logger
}

// NewCachedSummarizer wraps inner with c
func NewCachedSummarizer(inner Summarizer, c SummaryCache) *CachedSummarizer {
	return &CachedSummarizer{
		inner:  inner,
		cache:  c,
		logger: slog.Default().With("component", "summary_cache"),
	}
}

func (s *CachedSummarizer) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	if req.CommitSHA == "" {
		return s.inner.Summarize(ctx, req)
	}
	key := cache.SummaryCacheKey(req.CommitSHA, req.File.Filename)

	var cached string
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("summary cache read failed", "error", err)
	} else if hit {
		return cached, nil
	}

	summary, err := s.inner.Summarize(ctx, req)
	if err != nil {
		return "", err
	}
	if summary != "" {
		if err := s.cache.Set(ctx, key, summary); err != nil {
			s.logger.Warn("summary cache write failed", "error", err)
		}
	}
	return summary, nil
}
