package job

import (
	"context"
	"fmt"
	"log/slog"

	"postqueue/internal/scheduler"
)

// DispatchJob is the cron-driven due sweep. Dispatch normally rides the
// per-post queue trigger; the sweep catches posts whose task was lost and
// anything rescheduled out-of-band.
type DispatchJob struct {
	s scheduler.Service
}

func NewDispatchJob(s scheduler.Service) *DispatchJob {
	return &DispatchJob{s: s}
}

func (j *DispatchJob) Run() {
	ctx := context.Background()

	dispatched, err := j.s.DispatchDue(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if dispatched > 0 {
		slog.Info(fmt.Sprintf("due sweep dispatched %d posts", dispatched))
	}
}
