package streak

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
)

// mapError translates node and transport failures into error kinds
func mapError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return apperrors.Cancelled(err)
	}

	var httpErr gethrpc.HTTPError
	if stderrors.As(err, &httpErr) {
		return apperrors.Wrap(err, kindForStatus(httpErr.StatusCode), operation).
			WithContext("status", httpErr.StatusCode)
	}

	var rpcErr gethrpc.Error
	if stderrors.As(err, &rpcErr) {
		return apperrors.Wrap(err, apperrors.KindExternal, operation).
			WithContext("rpc_code", rpcErr.ErrorCode())
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return apperrors.Wrap(err, apperrors.KindTransientHost, operation)
	}
	return apperrors.Wrap(err, apperrors.KindExternal, operation)
}

func kindForStatus(status int) apperrors.Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.KindUnauthorized
	case status == http.StatusTooManyRequests:
		return apperrors.KindRateLimited
	case status >= 500:
		return apperrors.KindTransientHost
	default:
		return apperrors.KindExternal
	}
}
