package queue

import (
	"context"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

const TaskTypeSchedulePost = "schedule:post"

type SchedulePostPayload struct {
	PostID string `json:"post_id"`
}

type PostLoader interface {
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)
}

type PostProcessor interface {
	Process(ctx context.Context, post *models.ScheduledPost) error
}

// Queue runs posts at their exact scheduled time. The cron batch remains the
// safety net; the claim in Process keeps the two paths from double-publishing.
type Queue struct {
	posts PostLoader
	proc  PostProcessor
	now   func() time.Time
}

func NewQueue(posts PostLoader, proc PostProcessor) *Queue {
	return &Queue{posts: posts, proc: proc, now: time.Now}
}
