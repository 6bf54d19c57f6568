package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueueDispatch schedules a post:dispatch task to fire after delay. A
// negative delay (an already-due post) is processed immediately.
func (c *Client) EnqueueDispatch(ctx context.Context, postID string, delay time.Duration) error {
	payload, err := json.Marshal(DispatchPostPayload{PostID: postID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeDispatchPost, payload)

	_, err = c.asynqClient.EnqueueContext(ctx, task, asynq.ProcessIn(delay))
	if err != nil {
		return err
	}

	log.Printf("Dispatch scheduled for post %s in %s", postID, delay)
	return nil
}
