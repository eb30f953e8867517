package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/maheshrc27/postflow/internal/service"
)

func (j *Queue) HandleSchedulePostTask(ctx context.Context, task *asynq.Task) error {
	var payload SchedulePostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskTypeSchedulePost, err, asynq.SkipRetry)
	}
	if payload.PostID == "" {
		return fmt.Errorf("empty post id: %w", asynq.SkipRetry)
	}

	return j.PublishPost(ctx, payload.PostID)
}

// PublishPost processes one post if it is still scheduled and due.
func (j *Queue) PublishPost(ctx context.Context, postID string) error {
	post, err := j.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		slog.Warn("scheduled post no longer exists", "post_id", postID)
		return nil
	}
	if !post.IsDue(j.now()) {
		slog.Info("post not due, leaving it to the scheduler", "post_id", postID, "status", post.Status)
		return nil
	}

	err = j.proc.Process(ctx, post)
	if service.IsSkip(err) {
		return nil
	}
	return err
}
