package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const (
	graphStatusFinished    = "FINISHED"
	graphStatusError       = "ERROR"
	graphStatusExpired     = "EXPIRED"
	graphStatusPublished   = "PUBLISHED"
	graphMediaTypeCarousel = "CAROUSEL"
)

// instagramService drives the container protocol: create a media container,
// wait for the platform to ingest it, then publish it. Carousels create one
// child container per image, then a parent that references them.
type instagramService struct {
	client *platformClient
	poller containerPoller
}

func NewInstagramService(graphBaseURL string, opts ClientOptions, pollInterval time.Duration, pollMaxAttempts int) PlatformAdapter {
	return &instagramService{
		client: newPlatformClient(models.PlatformInstagram, graphBaseURL, opts),
		poller: newContainerPoller(models.PlatformInstagram, pollInterval, pollMaxAttempts),
	}
}

func (s *instagramService) Platform() string {
	return models.PlatformInstagram
}

func (s *instagramService) Validate(acc *models.SocialAccount) error {
	if acc.AccessToken == "" {
		return fmt.Errorf("%w: instagram token missing", ErrAccountNotConnected)
	}
	if acc.BusinessAccountID == "" {
		return fmt.Errorf("%w: no instagram business account linked to page %s", ErrAccountNotConnected, acc.PageID)
	}
	return nil
}

func (s *instagramService) Publish(ctx context.Context, acc *models.SocialAccount, imageURLs []string, caption string) (string, error) {
	if len(imageURLs) == 1 {
		return s.publishSingle(ctx, acc, imageURLs[0], caption)
	}
	return s.publishCarousel(ctx, acc, imageURLs, caption)
}

func (s *instagramService) publishSingle(ctx context.Context, acc *models.SocialAccount, imageURL, caption string) (string, error) {
	containerID, err := s.createContainer(ctx, acc, transfer.GraphContainerRequest{
		ImageURL: imageURL,
		Caption:  caption,
	})
	if err != nil {
		return "", err
	}
	if err := s.waitUntilReady(ctx, acc, containerID); err != nil {
		return "", err
	}
	return s.publish(ctx, acc, containerID)
}

// publishCarousel brings every child to FINISHED one at a time before the
// parent is created. A failed child aborts the whole carousel.
func (s *instagramService) publishCarousel(ctx context.Context, acc *models.SocialAccount, imageURLs []string, caption string) (string, error) {
	childIDs := make([]string, 0, len(imageURLs))

	for i, imageURL := range imageURLs {
		childID, err := s.createContainer(ctx, acc, transfer.GraphContainerRequest{
			ImageURL:       imageURL,
			IsCarouselItem: true,
		})
		if err != nil {
			return "", fmt.Errorf("carousel item %d: %w", i+1, err)
		}
		if err := s.waitUntilReady(ctx, acc, childID); err != nil {
			return "", fmt.Errorf("carousel item %d: %w", i+1, err)
		}
		childIDs = append(childIDs, childID)
	}

	parentID, err := s.createContainer(ctx, acc, transfer.GraphContainerRequest{
		MediaType: graphMediaTypeCarousel,
		Caption:   caption,
		Children:  childIDs,
	})
	if err != nil {
		return "", fmt.Errorf("carousel container: %w", err)
	}
	if err := s.waitUntilReady(ctx, acc, parentID); err != nil {
		return "", fmt.Errorf("carousel container: %w", err)
	}

	return s.publish(ctx, acc, parentID)
}

func (s *instagramService) createContainer(ctx context.Context, acc *models.SocialAccount, req transfer.GraphContainerRequest) (string, error) {
	var result transfer.GraphIDResponse
	path := fmt.Sprintf("/%s/media", acc.BusinessAccountID)
	if err := s.client.postJSON(ctx, acc.AccessToken, path, req, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &PlatformError{Platform: models.PlatformInstagram, StatusCode: 200, Message: "no media container id returned"}
	}
	return result.ID, nil
}

func (s *instagramService) waitUntilReady(ctx context.Context, acc *models.SocialAccount, containerID string) error {
	return s.poller.waitUntilReady(ctx, containerID, func(ctx context.Context) (ContainerState, string, error) {
		var status transfer.GraphContainerStatus
		query := url.Values{"fields": {"status_code,status"}}
		if err := s.client.get(ctx, acc.AccessToken, "/"+containerID, query, &status); err != nil {
			return "", "", err
		}
		return graphContainerState(status.StatusCode), status.Status, nil
	})
}

func (s *instagramService) publish(ctx context.Context, acc *models.SocialAccount, containerID string) (string, error) {
	var result transfer.GraphIDResponse
	path := fmt.Sprintf("/%s/media_publish", acc.BusinessAccountID)
	if err := s.client.postJSON(ctx, acc.AccessToken, path, transfer.GraphPublishRequest{CreationID: containerID}, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &PlatformError{Platform: models.PlatformInstagram, StatusCode: 200, Message: "no media id returned from publish"}
	}

	slog.Info("published instagram media", "ig_user_id", acc.BusinessAccountID, "media_id", result.ID)
	return result.ID, nil
}

func graphContainerState(statusCode string) ContainerState {
	switch statusCode {
	case graphStatusFinished, graphStatusPublished:
		return ContainerFinished
	case graphStatusError, graphStatusExpired:
		return ContainerError
	default:
		return ContainerPending
	}
}
