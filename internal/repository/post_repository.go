package repository

import (
	"context"
	"errors"
	"time"

	"postqueue/internal/models"
)

var (
	ErrDuplicateID     = errors.New("post id already exists")
	ErrPostNotFound    = errors.New("post not found")
	ErrAccountNotFound = errors.New("social account not found")
)

// PostRepository is the shared store behind all scheduler instances: the post
// records, a per-user index and the global DLQ list. Every mutation used by
// dispatch goes through an atomic primitive so concurrent workers never do a
// read-modify-write.
type PostRepository interface {
	// Create stores a new post. Returns ErrDuplicateID if the id exists.
	Create(ctx context.Context, post *models.ScheduledPost) error

	// GetByID returns ErrPostNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)

	// Claim is a compare-and-swap on status. It reports whether this caller
	// performed the transition; a missing post or a mismatched status is a
	// lost claim, not an error.
	Claim(ctx context.Context, id string, from, to models.PostStatus) (bool, error)

	// Update applies the non-nil fields of upd as one atomic merge.
	Update(ctx context.Context, id string, upd models.UpdatePost) error

	// MoveToDLQ marks the post failed, records the final error and prepends
	// the id to the DLQ list, all as a single operation.
	MoveToDLQ(ctx context.Context, id, errorMessage string) error

	// RemoveFromDLQ drops the id from the DLQ list only.
	RemoveFromDLQ(ctx context.Context, id string) error

	// Delete removes the record, its index entries and any DLQ reference.
	// Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error

	ListByUser(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)

	// ListDLQ returns hydrated DLQ posts, most recent failure first.
	ListDLQ(ctx context.Context, limit int) ([]*models.ScheduledPost, error)

	// ListDue returns ids of posts with status scheduled and scheduled_time
	// at or before now, soonest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// AccountRepository stores connected social accounts. Credentials are opaque
// here; callers encrypt before Save and decrypt after Get.
type AccountRepository interface {
	Save(ctx context.Context, account *models.SocialAccount) error

	// Get resolves an account by name. An empty accountName returns the
	// user's first connected account for the platform, or
	// ErrAccountNotFound if none is connected.
	Get(ctx context.Context, userID int64, platform models.Platform, accountName string) (*models.SocialAccount, error)

	ListByUser(ctx context.Context, userID int64) ([]*models.SocialAccount, error)

	// Remove returns ErrAccountNotFound when no such account is connected.
	Remove(ctx context.Context, userID int64, platform models.Platform, accountName string) error
}
