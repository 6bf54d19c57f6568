package queue

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

// HandleDispatchPostTask runs the publish attempt for the referenced post.
// A post that is no longer dispatchable (cancelled, already claimed, pushed
// forward by a retry) is a successful no-op; returning an error would only
// make asynq re-deliver a task that has nothing left to do.
func (w *Worker) HandleDispatchPostTask(ctx context.Context, task *asynq.Task) error {
	var payload DispatchPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return w.s.DispatchPost(ctx, payload.PostID)
}
