package scheduler

import (
	"errors"

	"postqueue/internal/repository"
)

var (
	// ErrInvalidSchedule rejects unschedulable input: a past or missing
	// scheduled_time, or an unsupported platform.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrQuotaExceeded means the user's plan has no posts left this month.
	ErrQuotaExceeded = errors.New("post quota exceeded")

	// ErrNotAuthorized means the post belongs to a different user.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotCancellable means the post is past the point where a cancel can
	// win: it already published, failed or was cancelled.
	ErrNotCancellable = errors.New("only scheduled posts can be cancelled")

	// ErrNotFound aliases the store sentinel so callers can match either.
	ErrNotFound = repository.ErrPostNotFound
)
