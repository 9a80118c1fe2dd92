package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrStorageUnavailable is returned when no healthy provider could serve an
// operation. Callers should treat it as retryable.
var ErrStorageUnavailable = errors.New("storage: no healthy provider available")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as a logical failure of the operation itself. The pool
// returns it to the caller unchanged and does not fail over.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// isProviderFailure reports whether err indicates the provider itself is
// unusable, as opposed to a logical outcome of the query.
func isProviderFailure(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrInvalidField) {
		return false
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return false
	}
	return true
}
