package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postqueue/internal/classify"
	"postqueue/internal/models"
)

func TestEventPayloads(t *testing.T) {
	t.Parallel()

	publishedAt := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	failedAt := publishedAt.Add(time.Hour)

	post := &models.ScheduledPost{
		ID:          "p-1",
		UserID:      7,
		Platform:    models.PlatformInstagram,
		RetryCount:  3,
		PublishedAt: &publishedAt,
		FailedAt:    &failedAt,
	}

	t.Run("published", func(t *testing.T) {
		data, err := json.Marshal(newPostPublishedEvent(post))
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "p-1", decoded["post_id"])
		assert.Equal(t, "instagram", decoded["platform"])
		assert.Equal(t, float64(7), decoded["user_id"])
		assert.Equal(t, "2026-05-01T10:00:00Z", decoded["published_at"])
	})

	t.Run("failed", func(t *testing.T) {
		event := newPostFailedEvent(post, classify.RateLimit, "Max retries (3) exceeded. Last error: 429")
		data, err := json.Marshal(event)
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "rate_limit", decoded["error_type"])
		assert.Equal(t, float64(3), decoded["attempts"])
		assert.Equal(t, "2026-05-01T11:00:00Z", decoded["failed_at"])
	})
}
