package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, ttl time.Duration) *AccountCache {
	t.Helper()
	c, err := OpenAccountCache(filepath.Join(t.TempDir(), "nested", "cache.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAccountCache_PutGet(t *testing.T) {
	c := openTestCache(t, time.Hour)

	_, ok, err := c.Get("a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put("A@X.com ", models.AccountHandle{Login: "alice", ID: 7}))

	account, ok, err := c.Get("a@x.com")
	require.NoError(t, err)
	require.True(t, ok, "keys are case and whitespace insensitive")
	assert.Equal(t, "alice", account.Login)
	assert.Equal(t, int64(7), account.ID)
}

func TestAccountCache_Expiry(t *testing.T) {
	c := openTestCache(t, time.Hour)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Put("a@x.com", models.AccountHandle{Login: "alice"}))
	require.NoError(t, c.Put("b@x.com", models.AccountHandle{Login: "bob"}))

	now = now.Add(59 * time.Minute)
	_, ok, _ := c.Get("a@x.com")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get("a@x.com")
	assert.False(t, ok)

	removed, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestAccountCache_Invalidate(t *testing.T) {
	c := openTestCache(t, 0)
	require.NoError(t, c.Put("a@x.com", models.AccountHandle{Login: "alice"}))
	require.NoError(t, c.Invalidate("a@x.com"))

	_, ok, err := c.Get("a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

type countingHost struct {
	findCalls int
	accounts  map[string]models.AccountHandle
}

func (h *countingHost) FindAccountByIdentity(ctx context.Context, identity string, creds models.Credentials) (*models.AccountHandle, error) {
	h.findCalls++
	a, ok := h.accounts[identity]
	if !ok {
		return nil, apperrors.New(apperrors.KindIdentityNotFound, "no account")
	}
	return &a, nil
}

func (h *countingHost) ListRepositories(ctx context.Context, account models.AccountHandle, creds models.Credentials, page int) ([]models.RepositoryRef, int, error) {
	return []models.RepositoryRef{{Owner: account.Login, Name: "r"}}, 0, nil
}

func (h *countingHost) GetMostRecentCommit(ctx context.Context, account models.AccountHandle, repo models.RepositoryRef, creds models.Credentials) (*models.CommitSummary, error) {
	return nil, nil
}

func (h *countingHost) GetCommitDetail(ctx context.Context, account models.AccountHandle, repo models.RepositoryRef, sha string, creds models.Credentials) (*models.CommitDetail, error) {
	return &models.CommitDetail{SHA: sha}, nil
}

func TestCachingHost(t *testing.T) {
	inner := &countingHost{accounts: map[string]models.AccountHandle{"a@x.com": {Login: "alice", ID: 7}}}
	host := NewCachingHost(inner, openTestCache(t, time.Hour))
	ctx := context.Background()
	creds := models.Credentials{Token: "t"}

	for i := 0; i < 3; i++ {
		account, err := host.FindAccountByIdentity(ctx, "a@x.com", creds)
		require.NoError(t, err)
		assert.Equal(t, "alice", account.Login)
	}
	assert.Equal(t, 1, inner.findCalls)

	for i := 0; i < 2; i++ {
		_, err := host.FindAccountByIdentity(ctx, "ghost@x.com", creds)
		assert.Equal(t, apperrors.KindIdentityNotFound, apperrors.KindOf(err))
	}
	assert.Equal(t, 3, inner.findCalls, "misses are not cached")

	repos, _, err := host.ListRepositories(ctx, models.AccountHandle{Login: "alice"}, creds, 1)
	require.NoError(t, err)
	assert.Len(t, repos, 1)
}
