// Package events broadcasts terminal post outcomes over NATS so downstream
// consumers (feeds, notification senders, analytics) can react without
// polling the API.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"postqueue/internal/classify"
	"postqueue/internal/models"
)

const (
	SubjectPostPublished = "post.published"
	SubjectPostFailed    = "post.failed"
)

type PostPublishedEvent struct {
	PostID      string    `json:"post_id"`
	UserID      int64     `json:"user_id"`
	Platform    string    `json:"platform"`
	PublishedAt time.Time `json:"published_at"`
}

type PostFailedEvent struct {
	PostID    string    `json:"post_id"`
	UserID    int64     `json:"user_id"`
	Platform  string    `json:"platform"`
	ErrorType string    `json:"error_type"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	FailedAt  time.Time `json:"failed_at"`
}

type NatsNotifier struct {
	nc *nats.Conn
}

func NewNatsNotifier(nc *nats.Conn) *NatsNotifier {
	return &NatsNotifier{nc: nc}
}

// PostPublished is best-effort: a lost event never fails the dispatch that
// produced it.
func (n *NatsNotifier) PostPublished(_ context.Context, post *models.ScheduledPost) {
	n.publish(SubjectPostPublished, newPostPublishedEvent(post))
}

func (n *NatsNotifier) PostFailed(_ context.Context, post *models.ScheduledPost, kind classify.ErrorKind, message string) {
	n.publish(SubjectPostFailed, newPostFailedEvent(post, kind, message))
}

func (n *NatsNotifier) publish(subject string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error(err.Error())
		return
	}
	if err := n.nc.Publish(subject, data); err != nil {
		slog.Error("publish event failed",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}

func newPostPublishedEvent(post *models.ScheduledPost) PostPublishedEvent {
	event := PostPublishedEvent{
		PostID:   post.ID,
		UserID:   post.UserID,
		Platform: string(post.Platform),
	}
	if post.PublishedAt != nil {
		event.PublishedAt = *post.PublishedAt
	}
	return event
}

func newPostFailedEvent(post *models.ScheduledPost, kind classify.ErrorKind, message string) PostFailedEvent {
	event := PostFailedEvent{
		PostID:    post.ID,
		UserID:    post.UserID,
		Platform:  string(post.Platform),
		ErrorType: string(kind),
		Error:     message,
		Attempts:  post.RetryCount,
	}
	if post.FailedAt != nil {
		event.FailedAt = *post.FailedAt
	}
	return event
}
