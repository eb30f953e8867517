package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/maheshrc27/postflow/internal/metrics"
	"github.com/maheshrc27/postflow/internal/models"
)

// PostStore is the part of the post repository the processor writes to.
type PostStore interface {
	Claim(ctx context.Context, id string) (bool, error)
	Complete(ctx context.Context, id string, result *models.PostResult) error
}

// AttemptRecorder persists publish history.
type AttemptRecorder interface {
	Create(ctx context.Context, pa *models.PublishAttempt) (int64, error)
}

// PublishDispatcher publishes a post to one platform.
type PublishDispatcher interface {
	Dispatch(ctx context.Context, post *models.ScheduledPost, platform string, acc *models.SocialAccount) models.Outcome
}

type PostProcessor struct {
	posts         PostStore
	accounts      AccountService
	dispatcher    PublishDispatcher
	attempts      AttemptRecorder
	partialStatus bool
	timeout       time.Duration
	now           func() time.Time
}

type ProcessorOption func(*PostProcessor)

// WithPartialStatus makes mixed results end as partial instead of failed.
func WithPartialStatus(enabled bool) ProcessorOption {
	return func(p *PostProcessor) { p.partialStatus = enabled }
}

// WithAttemptRecorder stores one history row per platform attempt.
func WithAttemptRecorder(r AttemptRecorder) ProcessorOption {
	return func(p *PostProcessor) { p.attempts = r }
}

// WithProcessTimeout bounds the publishing of one claimed post, whatever
// deadline the caller carries.
func WithProcessTimeout(d time.Duration) ProcessorOption {
	return func(p *PostProcessor) { p.timeout = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *PostProcessor) { p.now = now }
}

func NewPostProcessor(posts PostStore, accounts AccountService, dispatcher PublishDispatcher, opts ...ProcessorOption) *PostProcessor {
	p := &PostProcessor{
		posts:      posts,
		accounts:   accounts,
		dispatcher: dispatcher,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process claims post, publishes it to each of its platforms in order and
// writes the final status once. It returns ErrAlreadyClaimed when another run
// owns the post. On success post is updated in place with the final result.
func (p *PostProcessor) Process(ctx context.Context, post *models.ScheduledPost) error {
	claimed, err := p.posts.Claim(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("claim post %s: %w", post.ID, err)
	}
	if !claimed {
		return ErrAlreadyClaimed
	}
	post.Status = models.PostStatusProcessing

	// Publishing must end before the stale sweep would fail this claim.
	publishCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		publishCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	outcomes := make(models.Outcomes, 0, len(post.Platforms))
	for _, platform := range post.Platforms {
		outcomes = append(outcomes, p.publishTo(publishCtx, post, platform))
	}

	result := Summarize(outcomes, p.now(), p.partialStatus)

	// The claim is already taken; the result must land even if the caller
	// gave up, otherwise the post waits for the stale sweep.
	if err := p.posts.Complete(context.WithoutCancel(ctx), post.ID, result); err != nil {
		return fmt.Errorf("complete post %s: %w", post.ID, err)
	}

	post.Status = result.Status
	post.PublishedAt = result.PublishedAt
	post.Error = result.Error
	post.Outcomes = result.Outcomes

	metrics.PostsProcessed.WithLabelValues(string(result.Status)).Inc()
	slog.Info("post processed", "post_id", post.ID, "status", result.Status, "platforms", len(outcomes))
	return nil
}

func (p *PostProcessor) publishTo(ctx context.Context, post *models.ScheduledPost, platform string) (out models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			slog.Error("platform publish panicked", "post_id", post.ID, "platform", platform, "panic", r)
			out = failedOutcome(platform, fmt.Errorf("%w: panic: %v", ErrProcessorFault, r))
		}
		p.record(ctx, post, out)
	}()

	acc, err := p.accounts.GetAccount(ctx, post.OwnerID, platform)
	if err != nil {
		slog.Error("account lookup failed", "post_id", post.ID, "platform", platform, "error", err)
		return failedOutcome(platform, fmt.Errorf("%w: %v", ErrProcessorFault, err))
	}

	return p.dispatcher.Dispatch(ctx, post, platform, acc)
}

func (p *PostProcessor) record(ctx context.Context, post *models.ScheduledPost, out models.Outcome) {
	result := "success"
	if !out.Success {
		result = string(out.Kind)
		slog.Warn("platform publish failed", "post_id", post.ID, "platform", out.Platform, "kind", out.Kind, "reason", out.Reason)
	}
	metrics.PlatformOutcomes.WithLabelValues(out.Platform, result).Inc()

	if p.attempts == nil {
		return
	}
	_, err := p.attempts.Create(context.WithoutCancel(ctx), &models.PublishAttempt{
		PostID:      post.ID,
		OwnerID:     post.OwnerID,
		Platform:    out.Platform,
		Success:     out.Success,
		ExternalID:  out.ExternalID,
		FailureKind: out.Kind,
		Reason:      out.Reason,
	})
	if err != nil {
		slog.Error("failed to record publish attempt", "post_id", post.ID, "platform", out.Platform, "error", err)
	}
}

// Summarize folds per-platform outcomes into the post's final state. A post
// is published only when every platform succeeded. With partial enabled, a
// mix of successes and failures ends as partial; otherwise it is failed.
func Summarize(outcomes models.Outcomes, now time.Time, partial bool) *models.PostResult {
	var reasons []string
	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
			continue
		}
		reasons = append(reasons, o.Reason)
	}

	result := &models.PostResult{Outcomes: outcomes}
	switch {
	case len(reasons) == 0:
		published := now
		result.Status = models.PostStatusPublished
		result.PublishedAt = &published
		return result
	case partial && succeeded > 0:
		result.Status = models.PostStatusPartial
	default:
		result.Status = models.PostStatusFailed
	}

	joined := strings.Join(reasons, "; ")
	result.Error = &joined
	return result
}

// IsSkip reports whether err only means another run handled the post.
func IsSkip(err error) bool {
	return errors.Is(err, ErrAlreadyClaimed)
}
