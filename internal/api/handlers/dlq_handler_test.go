package handlers_test

import (
	"context"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postqueue/internal/models"
	"postqueue/internal/transfer"
)

// deadLetter parks an existing post in the DLQ with the given final error.
func deadLetter(t *testing.T, env *testEnv, postID, errorMessage string) {
	t.Helper()
	require.NoError(t, env.repo.MoveToDLQ(context.Background(), postID, errorMessage))
}

func seedDLQ(t *testing.T, env *testEnv) (own, foreign *models.ScheduledPost) {
	t.Helper()
	ctx := context.Background()

	own, err := env.svc.Schedule(ctx, 7, scheduleRequest())
	require.NoError(t, err)
	deadLetter(t, env, own.ID, "Max retries (3) exceeded. Last error: connection refused")

	foreignReq := scheduleRequest()
	foreignReq.Platform = "tiktok"
	foreignReq.ContentType = models.ContentTypeVideo
	foreign, err = env.svc.Schedule(ctx, 9, foreignReq)
	require.NoError(t, err)
	deadLetter(t, env, foreign.ID, "Max retries (3) exceeded. Last error: rate limit reached")

	return own, foreign
}

func TestListDLQ(t *testing.T) {
	env := newTestEnv(t, nil)
	own, _ := seedDLQ(t, env)

	t.Run("user sees only own entries", func(t *testing.T) {
		resp := env.do(t, fiber.MethodGet, "/api/dlq", nil, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var entries []*transfer.DLQEntry
		decodeBody(t, resp, &entries)
		require.Len(t, entries, 1)

		entry := entries[0]
		assert.Equal(t, own.ID, entry.ID)
		assert.Equal(t, 3, entry.MaxAttempts)
		assert.Equal(t, "network_error", entry.ErrorType)
		assert.Contains(t, entry.LastError, "connection refused")
		require.NotNil(t, entry.FailedAt)
	})

	t.Run("admin sees the whole queue", func(t *testing.T) {
		resp := env.do(t, fiber.MethodGet, "/api/dlq", nil, map[string]string{
			"X-User-ID": "1", "X-Is-Admin": "true",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var entries []*transfer.DLQEntry
		decodeBody(t, resp, &entries)
		assert.Len(t, entries, 2)
	})

	t.Run("limit caps the result", func(t *testing.T) {
		resp := env.do(t, fiber.MethodGet, "/api/dlq?limit=1", nil, map[string]string{
			"X-User-ID": "1", "X-Is-Admin": "true",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var entries []*transfer.DLQEntry
		decodeBody(t, resp, &entries)
		assert.Len(t, entries, 1)
	})
}

func TestDLQStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	seedDLQ(t, env)

	t.Run("user scoped", func(t *testing.T) {
		resp := env.do(t, fiber.MethodGet, "/api/dlq/stats", nil, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var stats models.DLQStats
		decodeBody(t, resp, &stats)
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 1, stats.ByPlatform["instagram"])
		assert.Equal(t, 1, stats.ByErrorType["network_error"])
		require.NotNil(t, stats.OldestFailure)
	})

	t.Run("admin sees everything", func(t *testing.T) {
		resp := env.do(t, fiber.MethodGet, "/api/dlq/stats", nil, map[string]string{
			"X-User-ID": "1", "X-Is-Admin": "true",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var stats models.DLQStats
		decodeBody(t, resp, &stats)
		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 1, stats.ByErrorType["rate_limit"])
	})
}

func TestRetryDLQPostEndpoint(t *testing.T) {
	t.Run("owner reschedules", func(t *testing.T) {
		env := newTestEnv(t, nil)
		own, _ := seedDLQ(t, env)

		resp := env.do(t, fiber.MethodPost, "/api/dlq/"+own.ID+"/retry", nil, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var result struct {
			Status string `json:"status"`
			ID     string `json:"id"`
		}
		decodeBody(t, resp, &result)
		assert.Equal(t, "rescheduled", result.Status)
		assert.Equal(t, own.ID, result.ID)

		stored, err := env.repo.GetByID(context.Background(), own.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusScheduled, stored.Status)
	})

	t.Run("foreign user is rejected", func(t *testing.T) {
		env := newTestEnv(t, nil)
		_, foreign := seedDLQ(t, env)

		resp := env.do(t, fiber.MethodPost, "/api/dlq/"+foreign.ID+"/retry", nil, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		stored, err := env.repo.GetByID(context.Background(), foreign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusFailed, stored.Status)
	})

	t.Run("admin retries any entry", func(t *testing.T) {
		env := newTestEnv(t, nil)
		_, foreign := seedDLQ(t, env)

		resp := env.do(t, fiber.MethodPost, "/api/dlq/"+foreign.ID+"/retry", nil, map[string]string{
			"X-User-ID": "1", "X-Is-Admin": "true",
		})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("post outside the queue", func(t *testing.T) {
		env := newTestEnv(t, nil)
		created, err := env.svc.Schedule(context.Background(), 7, scheduleRequest())
		require.NoError(t, err)

		resp := env.do(t, fiber.MethodPost, "/api/dlq/"+created.ID+"/retry", nil, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "not in the dead letter queue")
	})

	t.Run("unknown id", func(t *testing.T) {
		env := newTestEnv(t, nil)
		resp := env.do(t, fiber.MethodPost, "/api/dlq/nope/retry", nil, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestDeleteDLQPostEndpoint(t *testing.T) {
	t.Run("owner deletes for good", func(t *testing.T) {
		env := newTestEnv(t, nil)
		own, _ := seedDLQ(t, env)

		resp := env.do(t, fiber.MethodDelete, "/api/dlq/"+own.ID, nil, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var result struct {
			Status string `json:"status"`
		}
		decodeBody(t, resp, &result)
		assert.Equal(t, "deleted", result.Status)

		_, err := env.repo.GetByID(context.Background(), own.ID)
		assert.Error(t, err)
	})

	t.Run("foreign user is rejected", func(t *testing.T) {
		env := newTestEnv(t, nil)
		_, foreign := seedDLQ(t, env)

		resp := env.do(t, fiber.MethodDelete, "/api/dlq/"+foreign.ID, nil, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}

func TestBulkDLQEndpoints(t *testing.T) {
	t.Run("retry-all reports per-id outcomes", func(t *testing.T) {
		env := newTestEnv(t, nil)
		own, foreign := seedDLQ(t, env)

		resp := env.do(t, fiber.MethodPost, "/api/dlq/retry-all", transfer.BulkActionRequest{
			IDs: []string{own.ID, foreign.ID, "missing"},
		}, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var result struct {
			Status  string `json:"status"`
			Success int    `json:"success"`
			Errors  int    `json:"errors"`
		}
		decodeBody(t, resp, &result)
		assert.Equal(t, "completed", result.Status)
		assert.Equal(t, 1, result.Success)
		assert.Equal(t, 2, result.Errors)

		stored, err := env.repo.GetByID(context.Background(), foreign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusFailed, stored.Status)
	})

	t.Run("delete-all reports per-id outcomes", func(t *testing.T) {
		env := newTestEnv(t, nil)
		own, foreign := seedDLQ(t, env)

		resp := env.do(t, fiber.MethodPost, "/api/dlq/delete-all", transfer.BulkActionRequest{
			IDs: []string{own.ID, foreign.ID},
		}, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var result struct {
			Status  string `json:"status"`
			Deleted int    `json:"deleted"`
			Errors  int    `json:"errors"`
		}
		decodeBody(t, resp, &result)
		assert.Equal(t, "completed", result.Status)
		assert.Equal(t, 1, result.Deleted)
		assert.Equal(t, 1, result.Errors)
	})
}
