package resolver

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyHost fails GetMostRecentCommit with the queued errors before succeeding
type flakyHost struct {
	fakeHost
	failures []error
	attempts int
}

func (f *flakyHost) GetMostRecentCommit(ctx context.Context, account models.AccountHandle, repo models.RepositoryRef, creds models.Credentials) (*models.CommitSummary, error) {
	f.attempts++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	return commitAt("ok", t0), nil
}

func newTestRetryingHost(inner SourceHost, maxRetries int) (*RetryingHost, *[]time.Duration) {
	var slept []time.Duration
	h := NewRetryingHost(inner, &RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
	})
	h.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return h, &slept
}

func TestRetryingHost_RetriesTransientErrors(t *testing.T) {
	inner := &flakyHost{failures: []error{transient("502"), transient("503")}}
	h, slept := newTestRetryingHost(inner, 2)

	commit, err := h.GetMostRecentCommit(context.Background(), models.AccountHandle{Login: "alice"}, models.RepositoryRef{Name: "R1"}, testCreds)
	require.NoError(t, err)
	assert.Equal(t, "ok", commit.SHA)
	assert.Equal(t, 3, inner.attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *slept)
}

func TestRetryingHost_GivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakyHost{failures: []error{transient("1"), transient("2"), transient("3"), transient("4")}}
	h, _ := newTestRetryingHost(inner, 2)

	_, err := h.GetMostRecentCommit(context.Background(), models.AccountHandle{}, models.RepositoryRef{Name: "R1"}, testCreds)
	require.Error(t, err)
	assert.Equal(t, 3, inner.attempts)
	assert.True(t, stderrors.Is(err, apperrors.ErrTransientHost))
	assert.Contains(t, err.Error(), "gave up after 2 retries")
}

func TestRetryingHost_NegativeMaxRetriesAttemptsOnce(t *testing.T) {
	inner := &flakyHost{}
	h, slept := newTestRetryingHost(inner, -1)

	var (
		commit *models.CommitSummary
		err    error
	)
	assert.NotPanics(t, func() {
		commit, err = h.GetMostRecentCommit(context.Background(), models.AccountHandle{}, models.RepositoryRef{Name: "R1"}, testCreds)
	})
	require.NoError(t, err)
	require.NotNil(t, commit)
	assert.Equal(t, "ok", commit.SHA)
	assert.Equal(t, 1, inner.attempts)
	assert.Empty(t, *slept)

	failing := &flakyHost{failures: []error{transient("502"), transient("503")}}
	h, _ = newTestRetryingHost(failing, -3)
	_, err = h.GetMostRecentCommit(context.Background(), models.AccountHandle{}, models.RepositoryRef{Name: "R1"}, testCreds)
	require.Error(t, err)
	assert.Equal(t, 1, failing.attempts)
	assert.Contains(t, err.Error(), "gave up after 0 retries")
}

func TestRetryingHost_DoesNotRetryOtherKinds(t *testing.T) {
	kinds := []apperrors.Kind{
		apperrors.KindRateLimited,
		apperrors.KindUnauthorized,
		apperrors.KindNotFound,
		apperrors.KindInvalidArgument,
	}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			inner := &flakyHost{failures: []error{apperrors.New(kind, "nope")}}
			h, slept := newTestRetryingHost(inner, 2)

			_, err := h.GetMostRecentCommit(context.Background(), models.AccountHandle{}, models.RepositoryRef{Name: "R1"}, testCreds)
			require.Error(t, err)
			assert.Equal(t, kind, apperrors.KindOf(err))
			assert.Equal(t, 1, inner.attempts)
			assert.Empty(t, *slept)
		})
	}
}

func TestRetryingHost_CancelledDuringBackoff(t *testing.T) {
	inner := &flakyHost{failures: []error{transient("502")}}
	h, _ := newTestRetryingHost(inner, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.GetMostRecentCommit(ctx, models.AccountHandle{}, models.RepositoryRef{Name: "R1"}, testCreds)
	assert.True(t, stderrors.Is(err, apperrors.ErrCancelled), "got %v", err)
	assert.Equal(t, 1, inner.attempts)
}

func TestRetryingHost_WithResolver(t *testing.T) {
	host := newFakeHost(
		fakeRepo{name: "R1", commit: commitAt("a", t0), files: oneFile("a.go")},
	)
	h, _ := newTestRetryingHost(host, 2)

	result, err := New(h, DefaultConfig()).ResolveLatestCommit(context.Background(), "a@x.com", testCreds)
	require.NoError(t, err)
	assert.Equal(t, "R1", result.Repository)
}

func TestRetryingHost_BackoffIsCapped(t *testing.T) {
	h := NewRetryingHost(nil, &RetryConfig{
		MaxRetries:     5,
		InitialBackoff: time.Second,
		MaxBackoff:     3 * time.Second,
	})

	assert.Equal(t, time.Second, h.backoff(0))
	assert.Equal(t, 2*time.Second, h.backoff(1))
	assert.Equal(t, 3*time.Second, h.backoff(4))
}
