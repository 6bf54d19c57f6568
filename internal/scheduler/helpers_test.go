package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"postqueue/internal/classify"
	"postqueue/internal/models"
	"postqueue/internal/repository"
)

type publisherFunc func(ctx context.Context, post *models.ScheduledPost) error

func (f publisherFunc) Publish(ctx context.Context, post *models.ScheduledPost) error {
	return f(ctx, post)
}

func succeedingPublisher() publisherFunc {
	return func(context.Context, *models.ScheduledPost) error { return nil }
}

func failingPublisher(msg string) publisherFunc {
	return func(context.Context, *models.ScheduledPost) error { return errors.New(msg) }
}

// fakeQuota answers with a fixed verdict and records increments.
type fakeQuota struct {
	mu         sync.Mutex
	allow      bool
	checks     int
	increments int64
}

func (q *fakeQuota) CanUseFeature(context.Context, int64, string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.checks++
	return q.allow, nil
}

func (q *fakeQuota) IncrementUsage(_ context.Context, _ int64, _ string, count int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.increments += count
	return nil
}

// captureNotifier records terminal outcomes.
type captureNotifier struct {
	mu        sync.Mutex
	published []string
	failed    []string
	lastKind  classify.ErrorKind
	lastMsg   string
}

func (n *captureNotifier) PostPublished(_ context.Context, post *models.ScheduledPost) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, post.ID)
}

func (n *captureNotifier) PostFailed(_ context.Context, post *models.ScheduledPost, kind classify.ErrorKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, post.ID)
	n.lastKind = kind
	n.lastMsg = message
}

// captureEnqueuer records dispatch registrations.
type captureEnqueuer struct {
	mu      sync.Mutex
	entries []enqueued
}

type enqueued struct {
	postID string
	delay  time.Duration
}

func (e *captureEnqueuer) EnqueueDispatch(_ context.Context, postID string, delay time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, enqueued{postID: postID, delay: delay})
	return nil
}

func seedPost(t *testing.T, repo repository.PostRepository, userID int64, platform models.Platform, status models.PostStatus, retryCount int) *models.ScheduledPost {
	t.Helper()

	post := &models.ScheduledPost{
		ID:            uuid.NewString(),
		UserID:        userID,
		Platform:      platform,
		ScheduledTime: time.Now().UTC().Add(-time.Minute),
		ContentType:   models.ContentTypePhoto,
		Caption:       "seeded",
		Status:        status,
		RetryCount:    retryCount,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), post))
	return post
}

func seedDLQPost(t *testing.T, repo repository.PostRepository, userID int64, platform models.Platform, errorMessage string) *models.ScheduledPost {
	t.Helper()

	post := seedPost(t, repo, userID, platform, models.PostStatusScheduled, scheduledRetries)
	require.NoError(t, repo.MoveToDLQ(context.Background(), post.ID, errorMessage))

	failed, err := repo.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	return failed
}

// scheduledRetries seeds DLQ posts with an exhausted retry budget.
const scheduledRetries = 3

// makeDue rewinds a post's scheduled time so the next dispatch sees it as
// due even after a retry pushed it forward.
func makeDue(t *testing.T, repo repository.PostRepository, postID string) {
	t.Helper()

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, repo.Update(context.Background(), postID, models.UpdatePost{ScheduledTime: &past}))
}
