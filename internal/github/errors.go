package github

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
)

// mapError translates go-github and transport failures into error kinds
func mapError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return apperrors.Cancelled(err)
	}

	var rateErr *github.RateLimitError
	if stderrors.As(err, &rateErr) {
		e := apperrors.Wrap(err, apperrors.KindRateLimited, operation)
		if wait := time.Until(rateErr.Rate.Reset.Time); wait > 0 {
			e = e.WithRetryAfter(wait)
		}
		return e
	}

	var abuseErr *github.AbuseRateLimitError
	if stderrors.As(err, &abuseErr) {
		e := apperrors.Wrap(err, apperrors.KindRateLimited, operation+": secondary rate limit")
		if abuseErr.RetryAfter != nil {
			e = e.WithRetryAfter(abuseErr.GetRetryAfter())
		}
		return e
	}

	var respErr *github.ErrorResponse
	if stderrors.As(err, &respErr) && respErr.Response != nil {
		status := respErr.Response.StatusCode
		e := apperrors.Wrap(err, kindForStatus(status), operation).WithContext("status", status)
		if status == http.StatusTooManyRequests {
			if d, ok := parseRetryAfter(respErr.Response.Header.Get("Retry-After")); ok {
				e = e.WithRetryAfter(d)
			}
		}
		return e
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return apperrors.Wrap(err, apperrors.KindTransientHost, operation)
	}

	return apperrors.Wrap(err, apperrors.KindExternal, operation)
}

func kindForStatus(status int) apperrors.Kind {
	switch {
	case status == http.StatusUnauthorized:
		return apperrors.KindUnauthorized
	case status == http.StatusForbidden:
		return apperrors.KindForbidden
	case status == http.StatusNotFound:
		return apperrors.KindNotFound
	case status == http.StatusUnprocessableEntity:
		return apperrors.KindInvalidArgument
	case status == http.StatusTooManyRequests:
		return apperrors.KindRateLimited
	case status >= 500:
		return apperrors.KindTransientHost
	default:
		return apperrors.KindExternal
	}
}

func isStatus(err error, status int) bool {
	var respErr *github.ErrorResponse
	return stderrors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == status
}

func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v + "s")
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
