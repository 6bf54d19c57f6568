package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"postqueue/internal/classify"
	"postqueue/internal/models"
	"postqueue/internal/scheduler"
	"postqueue/internal/transfer"
)

type DLQHandler struct {
	s scheduler.Service
}

func NewDLQHandler(s scheduler.Service) *DLQHandler {
	return &DLQHandler{s: s}
}

// ListDLQ returns dead-lettered posts newest failure first. Regular users
// see their own entries; administrators see the whole queue.
func (h *DLQHandler) ListDLQ(c *fiber.Ctx) error {
	userID := GetUserID(c)
	isAdmin := GetIsAdmin(c)
	limit := c.QueryInt("limit", 0)

	posts, err := h.s.GetDLQPosts(c.Context(), limit)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list dead letter queue",
		})
	}

	entries := make([]*transfer.DLQEntry, 0, len(posts))
	for _, post := range posts {
		if !isAdmin && post.UserID != userID {
			continue
		}
		entries = append(entries, toDLQEntry(post))
	}
	return c.Status(fiber.StatusOK).JSON(entries)
}

func (h *DLQHandler) DLQStats(c *fiber.Ctx) error {
	stats, err := h.s.GetDLQStats(c.Context(), GetUserID(c), GetIsAdmin(c))
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to compute dead letter queue stats",
		})
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

func (h *DLQHandler) RetryDLQPost(c *fiber.Ctx) error {
	postID := c.Params("id")

	post, err := h.s.GetPost(c.Context(), postID)
	if err != nil {
		if errors.Is(err, scheduler.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post not found",
			})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to fetch post",
		})
	}
	if post.UserID != GetUserID(c) && !GetIsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Post belongs to another user",
		})
	}

	if !h.s.RetryDLQPost(c.Context(), postID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Post is not in the dead letter queue",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "rescheduled",
		"id":     postID,
	})
}

func (h *DLQHandler) DeleteDLQPost(c *fiber.Ctx) error {
	postID := c.Params("id")

	post, err := h.s.GetPost(c.Context(), postID)
	if err != nil {
		if errors.Is(err, scheduler.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post not found",
			})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to fetch post",
		})
	}
	if post.UserID != GetUserID(c) && !GetIsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Post belongs to another user",
		})
	}

	if !h.s.DeleteDLQPost(c.Context(), postID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Post is not in the dead letter queue",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "deleted",
		"id":     postID,
	})
}

func (h *DLQHandler) RetryAllDLQ(c *fiber.Ctx) error {
	var req transfer.BulkActionRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	success, failed := h.s.RetryAllDLQ(c.Context(), GetUserID(c), GetIsAdmin(c), req.IDs)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "completed",
		"success": success,
		"errors":  failed,
	})
}

func (h *DLQHandler) DeleteAllDLQ(c *fiber.Ctx) error {
	var req transfer.BulkActionRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	deleted, failed := h.s.DeleteAllDLQ(c.Context(), GetUserID(c), GetIsAdmin(c), req.IDs)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "completed",
		"deleted": deleted,
		"errors":  failed,
	})
}

func toDLQEntry(post *models.ScheduledPost) *transfer.DLQEntry {
	return &transfer.DLQEntry{
		ID:             post.ID,
		UserID:         post.UserID,
		Platform:       string(post.Platform),
		ScheduledTime:  post.ScheduledTime,
		FailedAt:       post.FailedAt,
		Attempts:       post.RetryCount,
		MaxAttempts:    scheduler.MaxRetryAttempts,
		LastError:      post.ErrorMessage,
		ErrorType:      string(classify.Classify(post.ErrorMessage)),
		ContentType:    post.ContentType,
		Caption:        truncateCaption(post.Caption),
		MediaReference: post.MediaReference,
	}
}
