package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
)

// RetryConfig configures retry behavior for transient host errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig retries each call at most twice.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryingHost wraps a SourceHost and retries calls that fail with KindTransientHost.
// Every other kind is returned after the first attempt.
type RetryingHost struct {
	inner  SourceHost
	config *RetryConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryingHost creates a RetryingHost around inner. A nil cfg uses DefaultRetryConfig.
// A negative MaxRetries is treated as zero: every call is attempted once.
func NewRetryingHost(inner SourceHost, cfg *RetryConfig) *RetryingHost {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	clamped := *cfg
	if clamped.MaxRetries < 0 {
		clamped.MaxRetries = 0
	}
	return &RetryingHost{
		inner:  inner,
		config: &clamped,
		logger: slog.Default().With("component", "retrying_host"),
		sleep:  sleepContext,
	}
}

// backoff computes the delay for the given attempt with jitter.
func (h *RetryingHost) backoff(attempt int) time.Duration {
	base := float64(h.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(h.config.MaxBackoff) {
		base = float64(h.config.MaxBackoff)
	}
	jitter := base * h.config.JitterFraction * (rand.Float64()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleepContext waits for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *RetryingHost) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !apperrors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt < h.config.MaxRetries {
			d := h.backoff(attempt)
			h.logger.Debug("retrying host call", "operation", operation, "attempt", attempt+1, "backoff", d, "error", lastErr)
			if err := h.sleep(ctx, d); err != nil {
				return apperrors.FromContext(err)
			}
		}
	}
	if lastErr == nil {
		// a nil *Error in an error interface is not nil
		return nil
	}
	return apperrors.Wrapf(lastErr, apperrors.KindTransientHost, "%s: gave up after %d retries", operation, h.config.MaxRetries)
}

func (h *RetryingHost) FindAccountByIdentity(ctx context.Context, identity string, creds models.Credentials) (account *models.AccountHandle, err error) {
	err = h.retry(ctx, "find account", func() error {
		account, err = h.inner.FindAccountByIdentity(ctx, identity, creds)
		return err
	})
	return
}

func (h *RetryingHost) ListRepositories(ctx context.Context, account models.AccountHandle, creds models.Credentials, page int) (repos []models.RepositoryRef, next int, err error) {
	err = h.retry(ctx, fmt.Sprintf("list repositories page %d", page), func() error {
		repos, next, err = h.inner.ListRepositories(ctx, account, creds, page)
		return err
	})
	return
}

func (h *RetryingHost) GetMostRecentCommit(ctx context.Context, account models.AccountHandle, repo models.RepositoryRef, creds models.Credentials) (commit *models.CommitSummary, err error) {
	err = h.retry(ctx, "latest commit "+repo.FullName(), func() error {
		commit, err = h.inner.GetMostRecentCommit(ctx, account, repo, creds)
		return err
	})
	return
}

func (h *RetryingHost) GetCommitDetail(ctx context.Context, account models.AccountHandle, repo models.RepositoryRef, sha string, creds models.Credentials) (detail *models.CommitDetail, err error) {
	err = h.retry(ctx, "commit detail "+repo.FullName(), func() error {
		detail, err = h.inner.GetCommitDetail(ctx, account, repo, sha, creds)
		return err
	})
	return
}
