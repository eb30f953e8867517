package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/metrics"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/service"
)

const staleClaimReason = "processing did not complete; claim expired"

type DuePostSource interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	FailStale(ctx context.Context, olderThan time.Duration, reason string) (int64, error)
}

type PostProcessor interface {
	Process(ctx context.Context, post *models.ScheduledPost) error
}

// RunSummary reports one batch run. Skipped posts were claimed by a
// concurrent run and are counted in neither Processed nor Failed.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

type PublishJob struct {
	posts DuePostSource
	proc  PostProcessor
	cfg   config.Scheduler
	now   func() time.Time
}

func NewPublishJob(posts DuePostSource, proc PostProcessor, cfg config.Scheduler) *PublishJob {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	return &PublishJob{posts: posts, proc: proc, cfg: cfg, now: time.Now}
}

// PublishDuePosts is the cron entry point.
func (j *PublishJob) PublishDuePosts() {
	ctx := context.Background()
	if j.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.cfg.RunTimeout)
		defer cancel()
	}

	summary, err := j.RunDue(ctx)
	if err != nil {
		slog.Error("scheduled publish run failed", "error", err)
		return
	}
	if summary.Total > 0 {
		slog.Info("scheduled publish run finished", "run_id", summary.RunID, "total", summary.Total,
			"processed", summary.Processed, "failed", summary.Failed, "skipped", summary.Skipped)
	}
}

// RunDue fails expired claims, then processes up to one batch of due posts
// concurrently. Every post settles before RunDue returns; a failure or panic
// in one post never affects the others.
func (j *PublishJob) RunDue(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{RunID: uuid.NewString()}

	if j.cfg.StaleClaimAfter > 0 {
		n, err := j.posts.FailStale(ctx, j.cfg.StaleClaimAfter, staleClaimReason)
		if err != nil {
			slog.Warn("stale claim sweep failed", "run_id", summary.RunID, "error", err)
		} else if n > 0 {
			metrics.StaleClaimsFailed.Add(float64(n))
			slog.Warn("failed stale claims", "run_id", summary.RunID, "count", n)
		}
	}

	posts, err := j.posts.ListDue(ctx, j.now(), j.cfg.BatchSize)
	if err != nil {
		metrics.SchedulerRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	summary.Total = len(posts)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(j.cfg.BatchSize)

	for _, post := range posts {
		post := post
		g.Go(func() error {
			outcome := j.processOne(ctx, summary.RunID, post)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeProcessed:
				summary.Processed++
			case outcomeSkipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.SchedulerRuns.WithLabelValues("ok").Inc()
	metrics.SchedulerRunDuration.Observe(time.Since(start).Seconds())
	return summary, nil
}

type postOutcome int

const (
	outcomeFailed postOutcome = iota
	outcomeProcessed
	outcomeSkipped
)

func (j *PublishJob) processOne(ctx context.Context, runID string, post *models.ScheduledPost) (outcome postOutcome) {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			slog.Error("post processing panicked", "run_id", runID, "post_id", post.ID, "panic", r)
			outcome = outcomeFailed
		}
	}()

	err := j.proc.Process(ctx, post)
	switch {
	case service.IsSkip(err):
		slog.Info("post already claimed", "run_id", runID, "post_id", post.ID)
		return outcomeSkipped
	case err != nil:
		sentry.CaptureException(err)
		slog.Error("post processing failed", "run_id", runID, "post_id", post.ID, "error", err)
		return outcomeFailed
	case post.Status == models.PostStatusPublished:
		return outcomeProcessed
	default:
		return outcomeFailed
	}
}
