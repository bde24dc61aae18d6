package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saeid-a/coachmatch/internal/metrics"
	"github.com/saeid-a/coachmatch/internal/repository"
)

var (
	ErrDuplicateActiveRequest = errors.New("member already has an active training request")
	ErrInvalidState           = errors.New("invalid state")
	ErrNotAuthorized          = errors.New("not authorized")
	ErrInvalidTimeRange       = errors.New("time_end must be after time_start")
	ErrSchedulingConflict     = errors.New("requested time conflicts with another appointment")
	ErrInvalidReferral        = errors.New("invalid referral")
	ErrNotFound               = errors.New("not found")
	ErrRepositoryUnavailable  = errors.New("repository unavailable")
	ErrInvalidInput           = errors.New("invalid input")
)

// DefaultRepositoryTimeout bounds every repository call when the service was
// built without an explicit timeout.
const DefaultRepositoryTimeout = 5 * time.Second

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRepositoryUnavailable)
}

func repositoryContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultRepositoryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// storeError translates a repository failure into the service error kinds.
// Conflicts are handled at each call site because their meaning depends on
// the operation.
func storeError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	metrics.RecordRepositoryUnavailable(operation)
	return fmt.Errorf("%w: %s: %v", ErrRepositoryUnavailable, operation, err)
}
