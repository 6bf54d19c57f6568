package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postqueue/internal/models"
	"postqueue/internal/repository"
	"postqueue/internal/scheduler"
)

func TestRetryDLQPost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reschedules and preserves the retry count", func(t *testing.T) {
		repo := repository.NewMemoryPostRepository()
		enq := &captureEnqueuer{}
		svc := scheduler.NewService(repo, nil, succeedingPublisher(), enq, nil, 0)

		post := seedDLQPost(t, repo, 1, models.PlatformInstagram, "Max retries (3) exceeded. Last error: invalid token")
		require.Equal(t, scheduler.MaxRetryAttempts, post.RetryCount)

		before := time.Now().UTC()
		require.True(t, svc.RetryDLQPost(ctx, post.ID))

		got, err := repo.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusScheduled, got.Status)
		assert.Equal(t, scheduler.MaxRetryAttempts, got.RetryCount)
		assert.False(t, got.ScheduledTime.Before(before))

		dlq, err := svc.GetDLQPosts(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, dlq)

		require.Len(t, enq.entries, 1)
		assert.Equal(t, post.ID, enq.entries[0].postID)
		assert.Equal(t, time.Duration(0), enq.entries[0].delay)
	})

	t.Run("next failure dead-letters immediately", func(t *testing.T) {
		repo := repository.NewMemoryPostRepository()
		svc := scheduler.NewService(repo, nil, failingPublisher("connection reset"), nil, nil, 0)

		post := seedDLQPost(t, repo, 1, models.PlatformTikTok, "Max retries (3) exceeded. Last error: socket closed")
		require.True(t, svc.RetryDLQPost(ctx, post.ID))

		// Retry count carried over, so one more failure exhausts the budget
		// again instead of granting a fresh set of attempts.
		require.NoError(t, svc.DispatchPost(ctx, post.ID))

		got, err := repo.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusFailed, got.Status)
		assert.Equal(t, "Max retries (3) exceeded. Last error: connection reset", got.ErrorMessage)

		dlq, err := svc.GetDLQPosts(ctx, 0)
		require.NoError(t, err)
		require.Len(t, dlq, 1)
	})

	t.Run("false for a post that is not dead-lettered", func(t *testing.T) {
		repo := repository.NewMemoryPostRepository()
		svc := scheduler.NewService(repo, nil, succeedingPublisher(), nil, nil, 0)

		post := seedPost(t, repo, 1, models.PlatformInstagram, models.PostStatusScheduled, 0)
		assert.False(t, svc.RetryDLQPost(ctx, post.ID))

		got, err := repo.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusScheduled, got.Status)
	})

	t.Run("false for an unknown post", func(t *testing.T) {
		svc := scheduler.NewService(repository.NewMemoryPostRepository(), nil, succeedingPublisher(), nil, nil, 0)
		assert.False(t, svc.RetryDLQPost(ctx, "missing"))
	})
}

func TestDeleteDLQPost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("removes the record and the DLQ entry", func(t *testing.T) {
		repo := repository.NewMemoryPostRepository()
		svc := scheduler.NewService(repo, nil, succeedingPublisher(), nil, nil, 0)

		post := seedDLQPost(t, repo, 1, models.PlatformInstagram, "Max retries (3) exceeded. Last error: file too large")
		require.True(t, svc.DeleteDLQPost(ctx, post.ID))

		_, err := repo.GetByID(ctx, post.ID)
		assert.ErrorIs(t, err, repository.ErrPostNotFound)

		dlq, err := svc.GetDLQPosts(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, dlq)
	})

	t.Run("false unless the post is dead-lettered", func(t *testing.T) {
		repo := repository.NewMemoryPostRepository()
		svc := scheduler.NewService(repo, nil, succeedingPublisher(), nil, nil, 0)

		post := seedPost(t, repo, 1, models.PlatformInstagram, models.PostStatusPublished, 0)
		assert.False(t, svc.DeleteDLQPost(ctx, post.ID))
		assert.False(t, svc.DeleteDLQPost(ctx, "missing"))

		got, err := repo.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusPublished, got.Status)
	})
}

func TestBulkDLQOperations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("retry over a mixed set", func(t *testing.T) {
		repo := repository.NewMemoryPostRepository()
		svc := scheduler.NewService(repo, nil, succeedingPublisher(), nil, nil, 0)

		owned := seedDLQPost(t, repo, 1, models.PlatformInstagram, "Max retries (3) exceeded. Last error: timeout")
		foreign := seedDLQPost(t, repo, 2, models.PlatformTikTok, "Max retries (3) exceeded. Last error: timeout")
		ids := []string{owned.ID, "missing", foreign.ID}

		success, failed := svc.RetryAllDLQ(ctx, 1, false, ids)
		assert.Equal(t, 1, success)
		assert.Equal(t, 2, failed)
		assert.Equal(t, len(ids), success+failed)

		got, err := repo.GetByID(ctx, owned.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusScheduled, got.Status)

		// The foreign post is untouched: still failed, still dead-lettered.
		got, err = repo.GetByID(ctx, foreign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusFailed, got.Status)

		dlq, err := svc.GetDLQPosts(ctx, 0)
		require.NoError(t, err)
		require.Len(t, dlq, 1)
		assert.Equal(t, foreign.ID, dlq[0].ID)
	})

	t.Run("admin retries across owners", func(t *testing.T) {
		repo := repository.NewMemoryPostRepository()
		svc := scheduler.NewService(repo, nil, succeedingPublisher(), nil, nil, 0)

		a := seedDLQPost(t, repo, 1, models.PlatformInstagram, "Max retries (3) exceeded. Last error: timeout")
		b := seedDLQPost(t, repo, 2, models.PlatformTikTok, "Max retries (3) exceeded. Last error: timeout")

		success, failed := svc.RetryAllDLQ(ctx, 99, true, []string{a.ID, b.ID})
		assert.Equal(t, 2, success)
		assert.Equal(t, 0, failed)

		dlq, err := svc.GetDLQPosts(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, dlq)
	})

	t.Run("delete over a mixed set", func(t *testing.T) {
		repo := repository.NewMemoryPostRepository()
		svc := scheduler.NewService(repo, nil, succeedingPublisher(), nil, nil, 0)

		owned := seedDLQPost(t, repo, 1, models.PlatformInstagram, "Max retries (3) exceeded. Last error: timeout")
		foreign := seedDLQPost(t, repo, 2, models.PlatformTikTok, "Max retries (3) exceeded. Last error: timeout")
		ids := []string{owned.ID, "missing", foreign.ID}

		deleted, failed := svc.DeleteAllDLQ(ctx, 1, false, ids)
		assert.Equal(t, 1, deleted)
		assert.Equal(t, 2, failed)
		assert.Equal(t, len(ids), deleted+failed)

		_, err := repo.GetByID(ctx, owned.ID)
		assert.ErrorIs(t, err, repository.ErrPostNotFound)
		_, err = repo.GetByID(ctx, foreign.ID)
		assert.NoError(t, err)
	})
}

func TestGetDLQStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := repository.NewMemoryPostRepository()
	svc := scheduler.NewService(repo, nil, succeedingPublisher(), nil, nil, 0)

	first := seedDLQPost(t, repo, 1, models.PlatformInstagram, "Max retries (3) exceeded. Last error: HTTP 429 Too Many Requests")
	seedDLQPost(t, repo, 1, models.PlatformInstagram, "Max retries (3) exceeded. Last error: connection refused")
	seedDLQPost(t, repo, 2, models.PlatformTikTok, "Max retries (3) exceeded. Last error: something odd")

	t.Run("user sees only their own failures", func(t *testing.T) {
		stats, err := svc.GetDLQStats(ctx, 1, false)
		require.NoError(t, err)

		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, map[string]int{"instagram": 2}, stats.ByPlatform)
		assert.Equal(t, map[string]int{"rate_limit": 1, "network_error": 1}, stats.ByErrorType)
		require.NotNil(t, stats.OldestFailure)
		assert.True(t, stats.OldestFailure.Equal(*first.FailedAt))
	})

	t.Run("admin sees everything", func(t *testing.T) {
		stats, err := svc.GetDLQStats(ctx, 99, true)
		require.NoError(t, err)

		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, map[string]int{"instagram": 2, "tiktok": 1}, stats.ByPlatform)
		assert.Equal(t, map[string]int{"rate_limit": 1, "network_error": 1, "unknown": 1}, stats.ByErrorType)
	})

	t.Run("empty queue", func(t *testing.T) {
		empty := scheduler.NewService(repository.NewMemoryPostRepository(), nil, succeedingPublisher(), nil, nil, 0)
		stats, err := empty.GetDLQStats(ctx, 1, false)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Total)
		assert.Nil(t, stats.OldestFailure)
	})
}

func TestGetDLQPostsOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := repository.NewMemoryPostRepository()
	svc := scheduler.NewService(repo, nil, succeedingPublisher(), nil, nil, 0)

	older := seedDLQPost(t, repo, 1, models.PlatformInstagram, "Max retries (3) exceeded. Last error: timeout")
	newer := seedDLQPost(t, repo, 1, models.PlatformTikTok, "Max retries (3) exceeded. Last error: timeout")

	dlq, err := svc.GetDLQPosts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, dlq, 2)
	assert.Equal(t, newer.ID, dlq[0].ID)
	assert.Equal(t, older.ID, dlq[1].ID)

	limited, err := svc.GetDLQPosts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newer.ID, limited[0].ID)
}
