package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
)

// RateLimiter tracks summarization quota in Redis so every gitbuddy process
// on a machine or team shares one budget per API key
type RateLimiter struct {
	redis  *redis.Client
	limits Limits
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// Limits are the provider quotas the limiter enforces
type Limits struct {
	RPM int64 // Requests per minute
	TPM int64 // Tokens per minute, input and output combined
	RPD int64 // Requests per day
}

// Gemini flash tier defaults
const (
	DefaultRPM = 1000
	DefaultTPM = 1_000_000
	DefaultRPD = 10_000
)

// DefaultLimits returns the Gemini flash quotas
func DefaultLimits() Limits {
	return Limits{RPM: DefaultRPM, TPM: DefaultTPM, RPD: DefaultRPD}
}

// Limit names reported in the error context
const (
	LimitRPM = "RPM"
	LimitTPM = "TPM"
	LimitRPD = "RPD"
)

// Increments all three counters and checks thresholds atomically.
// Minute counters throttle at 90% of the limit; the daily counter at 100%.
var quotaScript = redis.NewScript(`
	local rpm_key = KEYS[1]
	local tpm_key = KEYS[2]
	local rpd_key = KEYS[3]
	local rpm_limit = tonumber(ARGV[1])
	local tpm_limit = tonumber(ARGV[2])
	local rpd_limit = tonumber(ARGV[3])
	local tokens = tonumber(ARGV[4])

	local rpm = redis.call('INCR', rpm_key)
	local tpm = redis.call('INCRBY', tpm_key, tokens)
	local rpd = redis.call('INCR', rpd_key)

	-- 70s on minute keys leaves room for clock skew between processes
	if rpm == 1 then redis.call('EXPIRE', rpm_key, 70) end
	if tpm == tokens then redis.call('EXPIRE', tpm_key, 70) end
	if rpd == 1 then redis.call('EXPIRE', rpd_key, 86400) end

	if rpm >= rpm_limit * 0.9 then
		return {-1, 'RPM', rpm, rpm_limit}
	end
	if tpm >= tpm_limit * 0.9 then
		return {-2, 'TPM', tpm, tpm_limit}
	end
	if rpd >= rpd_limit then
		return {-3, 'RPD', rpd, rpd_limit}
	end

	return {0, 'OK', rpm, tpm, rpd}
`)

// NewRateLimiter creates a limiter over an existing Redis client.
// provider namespaces the counters, e.g. "gemini".
func NewRateLimiter(client *redis.Client, provider string, limits Limits) *RateLimiter {
	if limits.RPM <= 0 {
		limits.RPM = DefaultRPM
	}
	if limits.TPM <= 0 {
		limits.TPM = DefaultTPM
	}
	if limits.RPD <= 0 {
		limits.RPD = DefaultRPD
	}
	if provider == "" {
		provider = string(ProviderGemini)
	}
	return &RateLimiter{
		redis:  client,
		limits: limits,
		prefix: "gitbuddy:llm:" + provider,
		logger: slog.Default().With("component", "llm_rate_limiter", "provider", provider),
		now:    time.Now,
	}
}

func (r *RateLimiter) keys(now time.Time) (rpm, tpm, rpd string) {
	minute := now.UTC().Format("2006-01-02T15:04")
	day := now.UTC().Format("2006-01-02")
	return fmt.Sprintf("%s:rpm:%s", r.prefix, minute),
		fmt.Sprintf("%s:tpm:%s", r.prefix, minute),
		fmt.Sprintf("%s:rpd:%s", r.prefix, day)
}

// CheckAndIncrement counts one request of estimatedTokens against the quota.
// It returns a KindRateLimited error carrying the wait time when a threshold is reached.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, estimatedTokens int64) error {
	now := r.now()
	rpmKey, tpmKey, rpdKey := r.keys(now)

	result, err := quotaScript.Run(ctx, r.redis,
		[]string{rpmKey, tpmKey, rpdKey},
		r.limits.RPM, r.limits.TPM, r.limits.RPD, estimatedTokens).Result()
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.Cancelled(ctx.Err())
		}
		return apperrors.Wrap(err, apperrors.KindExternal, "rate limiter redis script")
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return apperrors.New(apperrors.KindInternal, "invalid rate limiter response")
	}

	code, _ := values[0].(int64)
	if code >= 0 {
		return nil
	}
	if len(values) < 4 {
		return apperrors.New(apperrors.KindInternal, "invalid rate limiter response")
	}

	limit, _ := values[1].(string)
	current, _ := values[2].(int64)
	ceiling, _ := values[3].(int64)

	var wait time.Duration
	if limit == LimitRPD {
		utc := now.UTC()
		midnight := time.Date(utc.Year(), utc.Month(), utc.Day()+1, 0, 0, 0, 0, time.UTC)
		wait = midnight.Sub(utc)
	} else {
		wait = time.Duration(60-now.Second()) * time.Second
		if wait <= 0 {
			wait = time.Second
		}
	}

	return apperrors.Newf(apperrors.KindRateLimited, "%s quota reached (%d/%d)", limit, current, ceiling).
		WithContext("limit", limit).
		WithRetryAfter(wait)
}

// CheckAndIncrementWithRetry waits out minute-window throttling and retries.
// A spent daily quota is returned immediately.
func (r *RateLimiter) CheckAndIncrementWithRetry(ctx context.Context, estimatedTokens int64) error {
	for {
		err := r.CheckAndIncrement(ctx, estimatedTokens)
		if err == nil || apperrors.KindOf(err) != apperrors.KindRateLimited {
			return err
		}
		if isDailyLimit(err) {
			return err
		}

		wait, _ := apperrors.RetryAfter(err)
		r.logger.Warn("summarization quota approaching, throttling", "wait", wait, "error", err)

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return apperrors.Cancelled(ctx.Err())
		}
	}
}

func isDailyLimit(err error) bool {
	var e *apperrors.Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Context["limit"] == LimitRPD
}

// GetCurrentUsage returns the live counters (rpm, tpm, rpd)
func (r *RateLimiter) GetCurrentUsage(ctx context.Context) (int64, int64, int64, error) {
	rpmKey, tpmKey, rpdKey := r.keys(r.now())

	pipe := r.redis.Pipeline()
	rpmCmd := pipe.Get(ctx, rpmKey)
	tpmCmd := pipe.Get(ctx, tpmKey)
	rpdCmd := pipe.Get(ctx, rpdKey)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, 0, apperrors.Wrap(err, apperrors.KindExternal, "read usage counters")
	}

	// Missing keys read as zero
	rpm, _ := rpmCmd.Int64()
	tpm, _ := tpmCmd.Int64()
	rpd, _ := rpdCmd.Int64()
	return rpm, tpm, rpd, nil
}
