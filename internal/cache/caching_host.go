package cache

import (
	"context"
	"log/slog"

	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/rohankatakam/gitbuddy/internal/resolver"
)

// CachingHost serves FindAccountByIdentity from an AccountCache and delegates everything else.
// Only successful lookups are cached; a miss on the host is never remembered.
type CachingHost struct {
	resolver.SourceHost
	cache  *AccountCache
	logger *slog.Logger
}

// NewCachingHost wraps inner with the account cache
func NewCachingHost(inner resolver.SourceHost, cache *AccountCache) *CachingHost {
	return &CachingHost{
		SourceHost: inner,
		cache:      cache,
		logger:     slog.Default().With("component", "account_cache"),
	}
}

func (h *CachingHost) FindAccountByIdentity(ctx context.Context, identity string, creds models.Credentials) (*models.AccountHandle, error) {
	account, ok, err := h.cache.Get(identity)
	if err != nil {
		h.logger.Warn("account cache read failed", "error", err)
	} else if ok {
		h.logger.Debug("account cache hit", "login", account.Login)
		return account, nil
	}

	account, err = h.SourceHost.FindAccountByIdentity(ctx, identity, creds)
	if err != nil {
		return nil, err
	}
	if err := h.cache.Put(identity, *account); err != nil {
		h.logger.Warn("account cache write failed", "error", err)
	}
	return account, nil
}
