package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/maheshrc27/postflow/internal/models"
)

// PlatformAdapter publishes one post's images to a single platform.
type PlatformAdapter interface {
	Platform() string
	// Validate fails with ErrAccountNotConnected when the account lacks the
	// identifiers or credentials the platform needs.
	Validate(acc *models.SocialAccount) error
	// Publish returns the platform's id for the created post.
	Publish(ctx context.Context, acc *models.SocialAccount, imageURLs []string, caption string) (string, error)
}

// Dispatcher routes a post to the adapter registered for each platform.
type Dispatcher struct {
	media    MediaResolver
	adapters map[string]PlatformAdapter
}

func NewDispatcher(media MediaResolver, adapters ...PlatformAdapter) *Dispatcher {
	d := &Dispatcher{media: media, adapters: make(map[string]PlatformAdapter, len(adapters))}
	for _, a := range adapters {
		d.adapters[a.Platform()] = a
	}
	return d
}

// Supports reports whether an adapter is registered for platform.
func (d *Dispatcher) Supports(platform string) bool {
	_, ok := d.adapters[platform]
	return ok
}

// Dispatch publishes post to one platform and reports the outcome. It never
// panics and never returns an error; failures are carried in the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, post *models.ScheduledPost, platform string, acc *models.SocialAccount) (out models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			slog.Error("adapter panicked", "post_id", post.ID, "platform", platform, "panic", r)
			out = failedOutcome(platform, fmt.Errorf("%w: panic: %v", ErrProcessorFault, r))
		}
	}()

	externalID, err := d.publish(ctx, post, platform, acc)
	if err != nil {
		return failedOutcome(platform, err)
	}
	return models.Outcome{Platform: platform, Success: true, ExternalID: externalID}
}

func (d *Dispatcher) publish(ctx context.Context, post *models.ScheduledPost, platform string, acc *models.SocialAccount) (string, error) {
	adapter, ok := d.adapters[platform]
	if !ok {
		return "", fmt.Errorf("%w: unsupported platform %q", ErrProcessorFault, platform)
	}
	if acc == nil {
		return "", fmt.Errorf("%w: no %s account for owner %s", ErrAccountNotConnected, platform, post.OwnerID)
	}
	if err := adapter.Validate(acc); err != nil {
		return "", err
	}

	n := len(post.ImageURLs)
	if n == 0 || n > models.MaxImagesPerPost {
		return "", fmt.Errorf("%w: post has %d images, want 1 to %d", ErrProcessorFault, n, models.MaxImagesPerPost)
	}

	urls, err := d.media.Resolve(ctx, post.ImageURLs)
	if err != nil {
		return "", fmt.Errorf("resolve media: %w", err)
	}

	return adapter.Publish(ctx, acc, urls, post.CaptionFor(platform))
}

func failedOutcome(platform string, err error) models.Outcome {
	return models.Outcome{
		Platform: platform,
		Kind:     classify(err),
		Reason:   platform + ": " + err.Error(),
	}
}
