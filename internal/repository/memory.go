package repository

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"postqueue/internal/models"
)

// memoryPostRepository keeps everything under one mutex. It backs tests and
// single-node development; the atomicity guarantees match the Redis and
// Postgres implementations.
type memoryPostRepository struct {
	mu    sync.RWMutex
	posts map[string]*models.ScheduledPost
	dlq   []string // newest failure first
}

func NewMemoryPostRepository() PostRepository {
	return &memoryPostRepository{
		posts: make(map[string]*models.ScheduledPost),
	}
}

func (r *memoryPostRepository) Create(_ context.Context, post *models.ScheduledPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[post.ID]; ok {
		return ErrDuplicateID
	}
	r.posts[post.ID] = clonePost(post)
	return nil
}

func (r *memoryPostRepository) GetByID(_ context.Context, id string) (*models.ScheduledPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return clonePost(post), nil
}

func (r *memoryPostRepository) Claim(_ context.Context, id string, from, to models.PostStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok || post.Status != from {
		return false, nil
	}
	post.Status = to
	return true, nil
}

func (r *memoryPostRepository) Update(_ context.Context, id string, upd models.UpdatePost) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}

	if upd.Status != nil {
		post.Status = *upd.Status
	}
	if upd.ScheduledTime != nil {
		post.ScheduledTime = *upd.ScheduledTime
	}
	if upd.ErrorMessage != nil {
		post.ErrorMessage = *upd.ErrorMessage
	}
	if upd.RetryCount != nil {
		post.RetryCount = *upd.RetryCount
	}
	if upd.RetryErrors != nil {
		post.RetryErrors = slices.Clone(*upd.RetryErrors)
	}
	if upd.PublishedAt != nil {
		t := *upd.PublishedAt
		post.PublishedAt = &t
	}
	if upd.FailedAt != nil {
		t := *upd.FailedAt
		post.FailedAt = &t
	}
	return nil
}

func (r *memoryPostRepository) MoveToDLQ(_ context.Context, id, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}

	now := time.Now().UTC()
	post.Status = models.PostStatusFailed
	post.ErrorMessage = errorMessage
	post.FailedAt = &now

	r.dlq = slices.DeleteFunc(r.dlq, func(entry string) bool { return entry == id })
	r.dlq = append([]string{id}, r.dlq...)
	return nil
}

func (r *memoryPostRepository) RemoveFromDLQ(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dlq = slices.DeleteFunc(r.dlq, func(entry string) bool { return entry == id })
	return nil
}

func (r *memoryPostRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.posts, id)
	r.dlq = slices.DeleteFunc(r.dlq, func(entry string) bool { return entry == id })
	return nil
}

func (r *memoryPostRepository) ListByUser(_ context.Context, userID int64) ([]*models.ScheduledPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var posts []*models.ScheduledPost
	for _, post := range r.posts {
		if post.UserID == userID {
			posts = append(posts, clonePost(post))
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].ScheduledTime.After(posts[j].ScheduledTime)
	})
	return posts, nil
}

func (r *memoryPostRepository) ListDLQ(_ context.Context, limit int) ([]*models.ScheduledPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var posts []*models.ScheduledPost
	for _, id := range r.dlq {
		if limit > 0 && len(posts) == limit {
			break
		}
		if post, ok := r.posts[id]; ok {
			posts = append(posts, clonePost(post))
		}
	}
	return posts, nil
}

func (r *memoryPostRepository) ListDue(_ context.Context, now time.Time, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type due struct {
		id string
		at time.Time
	}
	var entries []due
	for id, post := range r.posts {
		if post.Status == models.PostStatusScheduled && !post.ScheduledTime.After(now) {
			entries = append(entries, due{id: id, at: post.ScheduledTime})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, entry.id)
	}
	return ids, nil
}

func clonePost(post *models.ScheduledPost) *models.ScheduledPost {
	clone := *post
	clone.Hashtags = slices.Clone(post.Hashtags)
	clone.RetryErrors = slices.Clone(post.RetryErrors)
	clone.PlatformConfig = maps.Clone(post.PlatformConfig)
	if post.PublishedAt != nil {
		t := *post.PublishedAt
		clone.PublishedAt = &t
	}
	if post.FailedAt != nil {
		t := *post.FailedAt
		clone.FailedAt = &t
	}
	return &clone
}
