package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueuePost schedules a publish task for postID after delay. Enqueueing the
// same post twice is a no-op.
func EnqueuePost(ctx context.Context, client Enqueuer, postID string, delay time.Duration) error {
	taskPayload, err := json.Marshal(SchedulePostPayload{PostID: postID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeSchedulePost, taskPayload)

	_, err = client.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.TaskID("post:"+postID),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("publish task scheduled", "post_id", postID, "delay", delay)
	return nil
}
