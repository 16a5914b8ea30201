package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Category normalizes adapter failures across sources.
type Category string

const (
	// CategoryNotFound: the source definitively has no record. Terminal for
	// this source; callers proceed to their fallback.
	CategoryNotFound Category = "not_found"

	// CategoryTimeout: the source took too long to respond.
	CategoryTimeout Category = "timeout"

	// CategoryRateLimited: the source rejected the request for pacing.
	CategoryRateLimited Category = "rate_limited"

	// CategoryOutage: the source is unreachable or returned a server error.
	CategoryOutage Category = "outage"

	// CategoryBadData: the source answered with a payload we cannot parse.
	CategoryBadData Category = "bad_data"

	// CategoryAuthentication: credentials missing, expired or rejected.
	CategoryAuthentication Category = "authentication"

	// CategoryInternal: unexpected adapter-side failure.
	CategoryInternal Category = "internal"
)

// Error wraps adapter failures with normalized categorization.
type Error struct {
	Category   Category
	Source     string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("registry %s [%s]: %s: %v", e.Source, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("registry %s [%s]: %s", e.Source, e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Underlying }

// NewError creates a normalized adapter error. The retryable flag follows
// from the category.
func NewError(category Category, source, message string, underlying error) *Error {
	retryable := category == CategoryTimeout ||
		category == CategoryOutage ||
		category == CategoryRateLimited

	return &Error{
		Category:   category,
		Source:     source,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// NotFoundError is shorthand for a definitive absence.
func NotFoundError(source, message string) *Error {
	return NewError(CategoryNotFound, source, message, nil)
}

// IsNotFound reports whether err is a definitive not-found.
func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// IsTransient reports whether err is worth retrying later. Anything that is
// neither NotFound nor transient is treated as transient by callers too:
// only a definitive NotFound may be read as absence.
func IsTransient(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// IsConfiguration reports whether err is a credential problem. Unlike every
// other category this is fatal for the whole run: missing or rejected
// credentials will fail every subsequent call to the same source.
func IsConfiguration(err error) bool {
	return CategoryOf(err) == CategoryAuthentication
}

// CategoryOf extracts the error category, defaulting to CategoryInternal.
func CategoryOf(err error) Category {
	var re *Error
	if errors.As(err, &re) {
		return re.Category
	}
	return CategoryInternal
}

// ClassifyTransport maps transport-level failures from net/http into the
// taxonomy. HTTP status mapping is each adapter's concern.
func ClassifyTransport(source string, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(CategoryTimeout, source, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewError(CategoryTimeout, source, "request canceled", err)
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return NewError(CategoryTimeout, source, "request timed out", err)
		}
		return NewError(CategoryOutage, source, "request failed", err)
	}
}
