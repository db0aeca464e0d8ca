package main

import (
	"context"
	"strings"

	"github.com/rohankatakam/gitbuddy/internal/cache"
	"github.com/rohankatakam/gitbuddy/internal/config"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/github"
	"github.com/rohankatakam/gitbuddy/internal/ipfs"
	"github.com/rohankatakam/gitbuddy/internal/llm"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/rohankatakam/gitbuddy/internal/resolver"
	"github.com/rohankatakam/gitbuddy/internal/storage"
	"github.com/rohankatakam/gitbuddy/internal/streak"
)

// closers collects cleanup functions of the collaborators a command opened
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.WithError(err).Debug("close failed")
		}
	}
}

// credentials returns the GitHub token, or InvalidArgument when none is configured
func credentials() (models.Credentials, error) {
	creds := models.Credentials{Token: cfg.GitHub.Token}
	if !creds.Valid() {
		return creds, apperrors.InvalidArgument("no GitHub token configured: set GITHUB_TOKEN or run 'gitbuddy configure'")
	}
	return creds, nil
}

// newResolver builds GitHub client -> retries -> account cache -> resolver
func newResolver(c *closers) (*resolver.Resolver, error) {
	client, err := github.NewClient(github.Options{
		BaseURL:   cfg.GitHub.BaseURL,
		RateLimit: cfg.GitHub.RateLimit,
	})
	if err != nil {
		return nil, err
	}

	retryCfg := resolver.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.GitHub.MaxRetries
	var host resolver.SourceHost = resolver.NewRetryingHost(client, retryCfg)

	accounts, err := cache.OpenAccountCache(cfg.AccountCachePath(), cfg.Cache.AccountTTL)
	if err != nil {
		logger.WithError(err).Warn("Account cache unavailable, looking up every identity")
	} else {
		c.add(accounts.Close)
		host = cache.NewCachingHost(host, accounts)
	}

	return resolver.New(host, resolver.Config{
		MaxRepositories: cfg.GitHub.MaxRepositories,
		Concurrency:     cfg.GitHub.Concurrency,
	}), nil
}

// newSummarizer builds the provider, adding the Redis cache and quota when Redis is reachable
func newSummarizer(ctx context.Context, c *closers) (llm.Summarizer, error) {
	s, err := llm.NewSummarizer(ctx, llm.Config{
		Provider:      llm.Provider(cfg.LLM.Provider),
		GeminiKey:     cfg.LLM.GeminiKey,
		GeminiModel:   cfg.LLM.GeminiModel,
		OpenAIKey:     cfg.LLM.OpenAIKey,
		OpenAIModel:   cfg.LLM.OpenAIModel,
		OpenAIBaseURL: cfg.LLM.OpenAIBaseURL,
	})
	if err != nil {
		return nil, err
	}
	if _, noop := s.(llm.NoopSummarizer); noop || cfg.Cache.RedisAddr == "" {
		return s, nil
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, summaries are not cached or rate limited")
		return s, nil
	}
	c.add(redisClient.Close)

	limiter := llm.NewRateLimiter(redisClient.Redis(), strings.ToLower(cfg.LLM.Provider), llm.Limits{
		RPM: cfg.LLM.RPM,
		TPM: cfg.LLM.TPM,
		RPD: cfg.LLM.RPD,
	})
	return llm.NewCachedSummarizer(llm.NewQuotaLimitedSummarizer(s, limiter), redisClient), nil
}

func newPinStore() (*ipfs.Client, error) {
	return ipfs.NewClient(ipfs.Options{
		APIURL:     cfg.Pinata.APIURL,
		GatewayURL: cfg.Pinata.GatewayURL,
		JWT:        cfg.Pinata.JWT,
		APIKey:     cfg.Pinata.APIKey,
		SecretKey:  cfg.Pinata.SecretKey,
	})
}

// newStreakClient builds the chain client. A lookup address makes a read-only
// client for that address; otherwise the configured sender and key are used.
func newStreakClient(c *closers, lookup string) (*streak.Client, error) {
	opts := streak.Options{
		RPCURL:          cfg.Streak.RPCURL,
		ContractAddress: cfg.Streak.ContractAddress,
		Account:         cfg.Streak.Account,
		PrivateKey:      cfg.Streak.PrivateKey,
		ReceiptTimeout:  cfg.Streak.ReceiptTimeout,
	}
	if lookup != "" {
		opts.Account, opts.PrivateKey = lookup, ""
	}
	client, err := streak.NewClient(opts)
	if err != nil {
		return nil, err
	}
	c.add(func() error {
		client.Close()
		return nil
	})
	return client, nil
}

// openIndex opens the local post index; storage type "none" returns nil
func openIndex(c *closers) (storage.Store, error) {
	if strings.EqualFold(cfg.Storage.Type, "none") {
		return nil, nil
	}
	store, err := storage.Open(storage.Config{
		Type:        cfg.Storage.Type,
		SQLitePath:  cfg.Storage.LocalPath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}, logger)
	if err != nil {
		return nil, err
	}
	c.add(store.Close)
	return store, nil
}

func validate(ctx config.ValidationContext) error {
	result := cfg.Validate(ctx)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	return result.Err()
}
