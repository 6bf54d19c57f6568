package scheduler

import (
	"context"
	"log/slog"
	"time"

	"postqueue/internal/classify"
	"postqueue/internal/models"
)

func (s *schedulerService) GetDLQPosts(ctx context.Context, limit int) ([]*models.ScheduledPost, error) {
	return s.repo.ListDLQ(ctx, limit)
}

// RetryDLQPost moves a dead-lettered post back into the schedule. The retry
// count is preserved so total lifetime attempts stay bounded across DLQ
// cycles. Reports false when the post is not in a retryable state; existence
// and ownership are the caller's checks.
func (s *schedulerService) RetryDLQPost(ctx context.Context, postID string) bool {
	ok, err := s.repo.Claim(ctx, postID, models.PostStatusFailed, models.PostStatusScheduled)
	if err != nil {
		slog.Error(err.Error())
		return false
	}
	if !ok {
		return false
	}

	now := time.Now().UTC()
	if err := s.repo.Update(ctx, postID, models.UpdatePost{ScheduledTime: &now}); err != nil {
		slog.Error(err.Error())
		return false
	}
	if err := s.repo.RemoveFromDLQ(ctx, postID); err != nil {
		slog.Error(err.Error())
		return false
	}

	if err := s.queue.EnqueueDispatch(ctx, postID, 0); err != nil {
		slog.Info(err.Error())
	}
	return true
}

// DeleteDLQPost permanently removes a dead-lettered post and its DLQ entry.
func (s *schedulerService) DeleteDLQPost(ctx context.Context, postID string) bool {
	post, err := s.repo.GetByID(ctx, postID)
	if err != nil {
		return false
	}
	if post.Status != models.PostStatusFailed {
		return false
	}
	if err := s.repo.Delete(ctx, postID); err != nil {
		slog.Error(err.Error())
		return false
	}
	return true
}

// RetryAllDLQ attempts each id independently; one bad id never fails the
// batch. Non-admins may only touch their own posts.
func (s *schedulerService) RetryAllDLQ(ctx context.Context, userID int64, isAdmin bool, ids []string) (success, failed int) {
	for _, id := range ids {
		post, err := s.repo.GetByID(ctx, id)
		if err != nil {
			failed++
			continue
		}
		if !isAdmin && post.UserID != userID {
			failed++
			continue
		}
		if s.RetryDLQPost(ctx, id) {
			success++
		} else {
			failed++
		}
	}
	return success, failed
}

func (s *schedulerService) DeleteAllDLQ(ctx context.Context, userID int64, isAdmin bool, ids []string) (deleted, failed int) {
	for _, id := range ids {
		post, err := s.repo.GetByID(ctx, id)
		if err != nil {
			failed++
			continue
		}
		if !isAdmin && post.UserID != userID {
			failed++
			continue
		}
		if s.DeleteDLQPost(ctx, id) {
			deleted++
		} else {
			failed++
		}
	}
	return deleted, failed
}

// GetDLQStats aggregates over the caller-visible slice of the DLQ: admins
// see every entry, users only their own.
func (s *schedulerService) GetDLQStats(ctx context.Context, userID int64, isAdmin bool) (*models.DLQStats, error) {
	posts, err := s.repo.ListDLQ(ctx, 0)
	if err != nil {
		return nil, err
	}

	stats := &models.DLQStats{
		ByPlatform:  make(map[string]int),
		ByErrorType: make(map[string]int),
	}
	for _, post := range posts {
		if !isAdmin && post.UserID != userID {
			continue
		}
		stats.Total++
		stats.ByPlatform[string(post.Platform)]++
		stats.ByErrorType[string(classify.Classify(post.ErrorMessage))]++
		if post.FailedAt != nil && (stats.OldestFailure == nil || post.FailedAt.Before(*stats.OldestFailure)) {
			stats.OldestFailure = post.FailedAt
		}
	}
	return stats, nil
}
