package scheduler

import (
	"context"

	"postqueue/internal/models"
)

// GetSchedulerStats counts a user's posts per status and platform. Retrying
// is never stored on a post; it is derived as scheduled with at least one
// failed attempt behind it.
func (s *schedulerService) GetSchedulerStats(ctx context.Context, userID int64) (*models.SchedulerStats, error) {
	posts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &models.SchedulerStats{ByPlatform: make(map[string]int)}
	for _, post := range posts {
		stats.Total++
		stats.ByPlatform[string(post.Platform)]++

		switch post.Status {
		case models.PostStatusScheduled:
			stats.Scheduled++
			if post.RetryCount > 0 {
				stats.Retrying++
			}
		case models.PostStatusPublishing:
			stats.Publishing++
		case models.PostStatusPublished:
			stats.Published++
		case models.PostStatusFailed:
			stats.Failed++
		case models.PostStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}
