package queue

import (
	"github.com/hibiken/asynq"

	"postqueue/internal/scheduler"
)

const TaskTypeDispatchPost = "post:dispatch"

type DispatchPostPayload struct {
	PostID string `json:"post_id"`
}

// Client enqueues dispatch triggers. It satisfies the scheduler's Enqueuer.
type Client struct {
	asynqClient *asynq.Client
}

func NewClient(asynqClient *asynq.Client) *Client {
	return &Client{asynqClient: asynqClient}
}

// Worker handles dispatch tasks by running the publish attempt.
type Worker struct {
	s scheduler.Service
}

func NewWorker(s scheduler.Service) *Worker {
	return &Worker{s: s}
}
