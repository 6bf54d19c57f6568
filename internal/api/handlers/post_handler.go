package handlers

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"postqueue/internal/media"
	"postqueue/internal/models"
	"postqueue/internal/scheduler"
	"postqueue/internal/transfer"
)

const listCaptionLimit = 100

type PostHandler struct {
	s scheduler.Service
	m media.Service
}

func NewPostHandler(s scheduler.Service, m media.Service) *PostHandler {
	return &PostHandler{s: s, m: m}
}

// SchedulePost accepts a JSON body referencing already-hosted media.
func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.SchedulePostRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	post, err := h.s.Schedule(c.Context(), userID, &req)
	if err != nil {
		return scheduleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// SchedulePostFile accepts a multipart form carrying the media file itself;
// the file is stored first and the post references the stored URL.
func (h *PostHandler) SchedulePostFile(c *fiber.Ctx) error {
	userID := GetUserID(c)

	form, err := c.MultipartForm()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	files := form.File["media"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No media file attached",
		})
	}

	scheduledTime, err := time.Parse(time.RFC3339, c.FormValue("scheduled_time"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "scheduled_time must be an RFC 3339 timestamp",
		})
	}

	mediaURL, err := h.m.StorePostMedia(c.Context(), userID, files[0])
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedMedia) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to store media",
		})
	}

	req := transfer.SchedulePostRequest{
		Platform:       c.FormValue("platform"),
		ScheduledTime:  scheduledTime,
		ContentType:    c.FormValue("content_type"),
		Caption:        c.FormValue("caption"),
		Hashtags:       splitHashtags(c.FormValue("hashtags")),
		AccountName:    c.FormValue("account_name"),
		MediaReference: mediaURL,
	}

	post, err := h.s.Schedule(c.Context(), userID, &req)
	if err != nil {
		return scheduleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	status := models.PostStatus(c.Query("status"))
	limit := c.QueryInt("limit", 50)

	posts, err := h.s.ListPosts(c.Context(), userID, status, limit)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	items := make([]*transfer.PostListItem, 0, len(posts))
	for _, post := range posts {
		items = append(items, toListItem(post))
	}
	return c.Status(fiber.StatusOK).JSON(items)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	post, err := h.s.GetPost(c.Context(), c.Params("id"))
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
	if post.UserID != userID && !GetIsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Post belongs to another user",
		})
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

// CancelPost cancels a scheduled post. With ?purge=true the record itself
// is removed instead, whatever state it is in.
func (h *PostHandler) CancelPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.Params("id")

	var err error
	if c.QueryBool("purge", false) {
		err = h.s.DeletePost(c.Context(), userID, postID)
	} else {
		err = h.s.Cancel(c.Context(), userID, postID)
	}

	switch {
	case err == nil:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Post cancelled",
		})
	case errors.Is(err, scheduler.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post not found",
		})
	case errors.Is(err, scheduler.ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Post belongs to another user",
		})
	case errors.Is(err, scheduler.ErrNotCancellable):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to cancel post",
		})
	}
}

func (h *PostHandler) SchedulerStats(c *fiber.Ctx) error {
	stats, err := h.s.GetSchedulerStats(c.Context(), GetUserID(c))
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to compute stats",
		})
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

func scheduleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, scheduler.ErrInvalidSchedule):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, scheduler.ErrQuotaExceeded):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to schedule post",
		})
	}
}

func toListItem(post *models.ScheduledPost) *transfer.PostListItem {
	return &transfer.PostListItem{
		ID:             post.ID,
		Platform:       string(post.Platform),
		ScheduledTime:  post.ScheduledTime,
		ContentType:    post.ContentType,
		Caption:        truncateCaption(post.Caption),
		AccountName:    post.AccountName,
		MediaReference: post.MediaReference,
		Status:         string(post.Status),
		ErrorMessage:   post.ErrorMessage,
		RetryCount:     post.RetryCount,
		CreatedAt:      post.CreatedAt,
		PublishedAt:    post.PublishedAt,
	}
}

func truncateCaption(caption string) string {
	runes := []rune(caption)
	if len(runes) <= listCaptionLimit {
		return caption
	}
	return string(runes[:listCaptionLimit]) + "..."
}

func splitHashtags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
