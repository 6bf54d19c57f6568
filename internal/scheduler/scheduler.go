package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"postqueue/internal/classify"
	"postqueue/internal/models"
	"postqueue/internal/repository"
	"postqueue/internal/transfer"
)

const (
	// MaxRetryAttempts is the total number of failed publish attempts a post
	// gets before it is dead-lettered.
	MaxRetryAttempts = 3

	BaseRetryDelay = time.Minute
	MaxRetryDelay  = time.Hour

	// FeatureSocialPosts is the quota feature consumed by Schedule.
	FeatureSocialPosts = "social_posts"

	DefaultPublishTimeout = 5 * time.Minute

	dispatchBatchSize = 100
)

// Publisher performs the platform publish call for a post. Implementations
// return a descriptive error on failure; the message is what gets classified.
type Publisher interface {
	Publish(ctx context.Context, post *models.ScheduledPost) error
}

// QuotaGate is the admission check consulted before a post is created.
type QuotaGate interface {
	CanUseFeature(ctx context.Context, userID int64, feature string) (bool, error)
	IncrementUsage(ctx context.Context, userID int64, feature string, count int64) error
}

// Enqueuer registers a dispatch trigger for a post after a delay.
type Enqueuer interface {
	EnqueueDispatch(ctx context.Context, postID string, delay time.Duration) error
}

// Notifier receives terminal publish outcomes. Implementations must not
// block dispatch; failures are the notifier's problem.
type Notifier interface {
	PostPublished(ctx context.Context, post *models.ScheduledPost)
	PostFailed(ctx context.Context, post *models.ScheduledPost, kind classify.ErrorKind, message string)
}

type Service interface {
	Schedule(ctx context.Context, userID int64, req *transfer.SchedulePostRequest) (*models.ScheduledPost, error)
	Cancel(ctx context.Context, userID int64, postID string) error
	GetPost(ctx context.Context, postID string) (*models.ScheduledPost, error)
	ListPosts(ctx context.Context, userID int64, status models.PostStatus, limit int) ([]*models.ScheduledPost, error)
	DeletePost(ctx context.Context, userID int64, postID string) error

	DispatchDue(ctx context.Context) (int, error)
	DispatchPost(ctx context.Context, postID string) error

	GetSchedulerStats(ctx context.Context, userID int64) (*models.SchedulerStats, error)

	GetDLQPosts(ctx context.Context, limit int) ([]*models.ScheduledPost, error)
	GetDLQStats(ctx context.Context, userID int64, isAdmin bool) (*models.DLQStats, error)
	RetryDLQPost(ctx context.Context, postID string) bool
	DeleteDLQPost(ctx context.Context, postID string) bool
	RetryAllDLQ(ctx context.Context, userID int64, isAdmin bool, ids []string) (success, failed int)
	DeleteAllDLQ(ctx context.Context, userID int64, isAdmin bool, ids []string) (deleted, failed int)
}

type schedulerService struct {
	repo           repository.PostRepository
	quota          QuotaGate
	publisher      Publisher
	queue          Enqueuer
	notifier       Notifier
	publishTimeout time.Duration
}

func NewService(
	repo repository.PostRepository,
	quota QuotaGate,
	publisher Publisher,
	queue Enqueuer,
	notifier Notifier,
	publishTimeout time.Duration) Service {
	if quota == nil {
		quota = allowAllQuota{}
	}
	if queue == nil {
		queue = noopEnqueuer{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	return &schedulerService{
		repo:           repo,
		quota:          quota,
		publisher:      publisher,
		queue:          queue,
		notifier:       notifier,
		publishTimeout: publishTimeout,
	}
}

func (s *schedulerService) Schedule(ctx context.Context, userID int64, req *transfer.SchedulePostRequest) (*models.ScheduledPost, error) {
	platform := models.Platform(req.Platform)
	if !platform.Valid() {
		return nil, fmt.Errorf("%w: unsupported platform %q", ErrInvalidSchedule, req.Platform)
	}
	if req.ScheduledTime.IsZero() || !req.ScheduledTime.After(time.Now()) {
		return nil, fmt.Errorf("%w: scheduled time must be in the future", ErrInvalidSchedule)
	}

	allowed, err := s.quota.CanUseFeature(ctx, userID, FeatureSocialPosts)
	if err != nil {
		slog.Error(err.Error())
		return nil, fmt.Errorf("quota check: %w", err)
	}
	if !allowed {
		return nil, ErrQuotaExceeded
	}

	post := &models.ScheduledPost{
		ID:             uuid.NewString(),
		UserID:         userID,
		Platform:       platform,
		ScheduledTime:  req.ScheduledTime.UTC(),
		ContentType:    req.ContentType,
		Caption:        req.Caption,
		Hashtags:       req.Hashtags,
		AccountName:    req.AccountName,
		MediaReference: req.MediaReference,
		PlatformConfig: req.PlatformConfig,
		Status:         models.PostStatusScheduled,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, post); err != nil {
		slog.Error(err.Error())
		return nil, fmt.Errorf("create post: %w", err)
	}

	if err := s.quota.IncrementUsage(ctx, userID, FeatureSocialPosts, 1); err != nil {
		slog.Info(err.Error())
	}
	if err := s.queue.EnqueueDispatch(ctx, post.ID, time.Until(post.ScheduledTime)); err != nil {
		// The periodic due sweep picks the post up if the task is lost.
		slog.Info(err.Error())
	}

	return post, nil
}

func (s *schedulerService) Cancel(ctx context.Context, userID int64, postID string) error {
	post, err := s.repo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return ErrNotAuthorized
	}

	// The CAS loses against a dispatch claim that already won; the attempt
	// then completes and cancel reports ErrNotCancellable.
	ok, err := s.repo.Claim(ctx, postID, models.PostStatusScheduled, models.PostStatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCancellable
	}
	return nil
}

func (s *schedulerService) GetPost(ctx context.Context, postID string) (*models.ScheduledPost, error) {
	return s.repo.GetByID(ctx, postID)
}

func (s *schedulerService) ListPosts(ctx context.Context, userID int64, status models.PostStatus, limit int) ([]*models.ScheduledPost, error) {
	posts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status != "" {
		posts = slices.DeleteFunc(posts, func(p *models.ScheduledPost) bool { return p.Status != status })
	}
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (s *schedulerService) DeletePost(ctx context.Context, userID int64, postID string) error {
	post, err := s.repo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return ErrNotAuthorized
	}
	return s.repo.Delete(ctx, postID)
}

// DispatchDue scans for posts whose scheduled time has arrived and attempts
// each one. It is the catch-up path behind the per-post queue trigger, so
// posts already claimed, cancelled or pushed forward are skipped quietly.
func (s *schedulerService) DispatchDue(ctx context.Context) (int, error) {
	ids, err := s.repo.ListDue(ctx, time.Now().UTC(), dispatchBatchSize)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, id := range ids {
		if err := s.DispatchPost(ctx, id); err != nil {
			slog.Error(err.Error())
			continue
		}
		dispatched++
	}
	return dispatched, nil
}

// DispatchPost runs one publish attempt. The scheduled->publishing claim is
// the exclusivity gate: with many workers racing, exactly one proceeds and
// the rest return nil without touching the post.
func (s *schedulerService) DispatchPost(ctx context.Context, postID string) error {
	post, err := s.repo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	// Re-checks cancellation (and any other transition) right before the
	// claim; a stale queue trigger for a rescheduled post is also a no-op.
	if post.Status != models.PostStatusScheduled || post.ScheduledTime.After(time.Now()) {
		return nil
	}

	ok, err := s.repo.Claim(ctx, postID, models.PostStatusScheduled, models.PostStatusPublishing)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	post.Status = models.PostStatusPublishing

	if err := s.publish(ctx, post); err != nil {
		return s.handlePublishFailure(ctx, post, err)
	}

	now := time.Now().UTC()
	status := models.PostStatusPublished
	err = s.repo.Update(ctx, postID, models.UpdatePost{Status: &status, PublishedAt: &now})
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	post.Status = status
	post.PublishedAt = &now
	s.notifier.PostPublished(ctx, post)

	slog.Info("post published",
		slog.String("post_id", post.ID),
		slog.String("platform", string(post.Platform)))
	return nil
}

// publish invokes the platform publisher under the configured timeout. A
// publisher that neither returns nor honors cancellation counts as failed
// once the timeout passes.
func (s *schedulerService) publish(ctx context.Context, post *models.ScheduledPost) error {
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.publisher.Publish(ctx, post)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s publish timeout after %s", post.Platform, s.publishTimeout)
	}
}

func (s *schedulerService) handlePublishFailure(ctx context.Context, post *models.ScheduledPost, pubErr error) error {
	msg := pubErr.Error()
	kind := classify.Classify(msg)
	attempts := post.RetryCount + 1

	slog.Error("publish failed",
		slog.String("post_id", post.ID),
		slog.String("platform", string(post.Platform)),
		slog.String("error_type", string(kind)),
		slog.Int("attempt", attempts),
		slog.String("error", msg))

	if attempts >= MaxRetryAttempts {
		final := fmt.Sprintf("Max retries (%d) exceeded. Last error: %s", MaxRetryAttempts, msg)
		if err := s.repo.MoveToDLQ(ctx, post.ID, final); err != nil {
			slog.Error(err.Error())
			return err
		}
		post.Status = models.PostStatusFailed
		post.ErrorMessage = final
		s.notifier.PostFailed(ctx, post, kind, final)
		return nil
	}

	delay := retryDelay(attempts)
	next := time.Now().UTC().Add(delay)
	status := models.PostStatusScheduled
	retryErrors := append(slices.Clone(post.RetryErrors), msg)

	err := s.repo.Update(ctx, post.ID, models.UpdatePost{
		Status:        &status,
		ScheduledTime: &next,
		ErrorMessage:  &msg,
		RetryCount:    &attempts,
		RetryErrors:   &retryErrors,
	})
	if err != nil {
		slog.Error(err.Error())
		return err
	}

	if err := s.queue.EnqueueDispatch(ctx, post.ID, delay); err != nil {
		slog.Info(err.Error())
	}
	return nil
}

// retryDelay grows exponentially with the attempt number and carries up to
// 25% random jitter, capped at MaxRetryDelay.
func retryDelay(attempt int) time.Duration {
	delay := BaseRetryDelay << attempt
	if delay > MaxRetryDelay || delay <= 0 {
		delay = MaxRetryDelay
	}
	jitter := time.Duration(rand.Int64N(int64(delay/4) + 1))
	if delay+jitter > MaxRetryDelay {
		return MaxRetryDelay
	}
	return delay + jitter
}

type allowAllQuota struct{}

func (allowAllQuota) CanUseFeature(context.Context, int64, string) (bool, error) { return true, nil }
func (allowAllQuota) IncrementUsage(context.Context, int64, string, int64) error { return nil }

type noopEnqueuer struct{}

func (noopEnqueuer) EnqueueDispatch(context.Context, string, time.Duration) error { return nil }

type noopNotifier struct{}

func (noopNotifier) PostPublished(context.Context, *models.ScheduledPost) {}
func (noopNotifier) PostFailed(context.Context, *models.ScheduledPost, classify.ErrorKind, string) {
}
