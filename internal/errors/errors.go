package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Kind represents the category of error surfaced to callers
type Kind int

const (
	// KindInternal - unexpected internal state
	KindInternal Kind = iota
	// KindInvalidArgument - empty identity, missing credentials, malformed input
	KindInvalidArgument
	// KindIdentityNotFound - host directory has no account for the identity
	KindIdentityNotFound
	// KindNoRepositories - resolved account owns zero repositories
	KindNoRepositories
	// KindNoCommitsFound - no scanned repository yielded a commit
	KindNoCommitsFound
	// KindNoFilesInCommit - winning commit has an empty file list
	KindNoFilesInCommit
	// KindRateLimited - host signalled quota exhaustion
	KindRateLimited
	// KindUnauthorized - credential rejected
	KindUnauthorized
	// KindTransientHost - network failure or 5xx on a single call
	KindTransientHost
	// KindCancelled - caller cancelled or the deadline fired
	KindCancelled
	// KindNotFound - a specific remote object does not exist
	KindNotFound
	// KindConfig - missing or invalid configuration
	KindConfig
	// KindStorage - local database or cache failures
	KindStorage
	// KindExternal - collaborator failure that fits no other kind
	KindExternal
	// KindForbidden - credential accepted but denied access to one resource
	KindForbidden
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, may impact functionality
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Kind       Kind
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	RetryAfter time.Duration // Only meaningful for KindRateLimited
	StackTrace string
}

// Sentinels for errors.Is comparisons. Is matches on Kind only, except that
// a Forbidden error also matches ErrUnauthorized.
var (
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrIdentityNotFound = &Error{Kind: KindIdentityNotFound}
	ErrNoRepositories   = &Error{Kind: KindNoRepositories}
	ErrNoCommitsFound   = &Error{Kind: KindNoCommitsFound}
	ErrNoFilesInCommit  = &Error{Kind: KindNoFilesInCommit}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrTransientHost    = &Error{Kind: KindTransientHost}
	ErrCancelled        = &Error{Kind: KindCancelled}
	ErrNotFound         = &Error{Kind: KindNotFound}
)

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	// Forbidden is the per-resource form of Unauthorized
	if e.Kind == KindForbidden && t.Kind == KindUnauthorized {
		return true
	}
	return e.Kind == t.Kind
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetryAfter records the host's retry hint
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	if d < 0 {
		d = 0
	}
	e.RetryAfter = d
	return e
}

// IsFatal returns true if this error should stop execution
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n", e.Severity, e.Kind, e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}
	if e.RetryAfter > 0 {
		sb.WriteString(fmt.Sprintf("Retry after: %s\n", e.RetryAfter))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	case KindIdentityNotFound:
		return "IDENTITY_NOT_FOUND"
	case KindNoRepositories:
		return "NO_REPOSITORIES"
	case KindNoCommitsFound:
		return "NO_COMMITS_FOUND"
	case KindNoFilesInCommit:
		return "NO_FILES_IN_COMMIT"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindTransientHost:
		return "TRANSIENT_HOST_ERROR"
	case KindCancelled:
		return "CANCELLED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConfig:
		return "CONFIG"
	case KindStorage:
		return "STORAGE"
	case KindExternal:
		return "EXTERNAL"
	case KindInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// defaultSeverity is the severity a kind gets when none is given explicitly
func defaultSeverity(k Kind) Severity {
	switch k {
	case KindTransientHost, KindRateLimited, KindNotFound:
		return SeverityMedium
	case KindInvalidArgument, KindIdentityNotFound, KindNoRepositories,
		KindNoCommitsFound, KindNoFilesInCommit, KindCancelled, KindExternal:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given kind and message
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:       kind,
		Severity:   defaultSeverity(kind),
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Newf creates a new error with formatting
func Newf(kind Kind, format string, args ...interface{}) *Error {
	e := New(kind, fmt.Sprintf(format, args...))
	e.StackTrace = captureStackTrace(2)
	return e
}

// Wrap wraps an existing error with a kind and message.
// Returns nil when err is nil.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}

	e := &Error{
		Kind:       kind,
		Severity:   defaultSeverity(kind),
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
	// Keep the retry hint of a wrapped rate limit error
	var inner *Error
	if stderrors.As(err, &inner) {
		e.RetryAfter = inner.RetryAfter
	}
	return e
}

// Wrapf wraps an existing error with formatting
func Wrapf(err error, kind Kind, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	e := Wrap(err, kind, fmt.Sprintf(format, args...))
	e.StackTrace = captureStackTrace(2)
	return e
}

// Convenience constructors for common error kinds

// InvalidArgument creates a validation error
func InvalidArgument(message string) *Error {
	return New(KindInvalidArgument, message)
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(KindConfig, message)
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(KindConfig, fmt.Sprintf(format, args...))
}

// StorageError wraps a database or cache error
func StorageError(err error, message string) *Error {
	return Wrap(err, KindStorage, message)
}

// Cancelled wraps a context error
func Cancelled(err error) *Error {
	return Wrap(err, KindCancelled, "operation cancelled")
}

// FromContext converts a context error into a Cancelled error.
// Non-context errors are returned unchanged.
func FromContext(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		if KindOf(err) == KindCancelled {
			return err
		}
		return Cancelled(err)
	}
	return err
}

// KindOf returns the kind of an error.
// Bare context errors report KindCancelled, unknown errors KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}

	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}

// RetryAfter returns the retry hint carried by a rate limit error, if any
func RetryAfter(err error) (time.Duration, bool) {
	var e *Error
	if stderrors.As(err, &e) && e.Kind == KindRateLimited && e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}

// IsRetryable reports whether retrying the same call may succeed
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindTransientHost
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var e *Error
	if stderrors.As(err, &e) {
		return e.IsFatal()
	}

	return false
}

// GetSeverity returns the severity of an error
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityLow
	}

	var e *Error
	if stderrors.As(err, &e) {
		return e.Severity
	}

	return SeverityMedium
}

// UserMessage maps an error kind to the message shown to end users
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindInvalidArgument:
		return "The request was incomplete. Check the email address and your GitHub token."
	case KindIdentityNotFound:
		return "No GitHub user found with this email address."
	case KindNoRepositories:
		return "No repositories found for this user."
	case KindNoCommitsFound:
		return "None of your repositories has a commit we could read."
	case KindNoFilesInCommit:
		return "Your latest commit has no file changes to post about."
	case KindRateLimited:
		if d, ok := RetryAfter(err); ok {
			return fmt.Sprintf("GitHub rate limit reached. Try again in %s.", d.Round(time.Second))
		}
		return "GitHub rate limit reached. Try again later."
	case KindUnauthorized:
		return "Your GitHub token was rejected. Sign in again or update the token."
	case KindForbidden:
		return "Your GitHub token is not allowed to read this resource."
	case KindTransientHost:
		return "GitHub is not responding right now. Try again in a moment."
	case KindCancelled:
		return "The request was cancelled or timed out."
	case KindNotFound:
		return "The requested item could not be found."
	case KindConfig:
		return "GitBuddy is not configured. Run 'gitbuddy configure'."
	default:
		return "Something went wrong."
	}
}
