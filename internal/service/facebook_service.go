package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

// facebookService publishes to a Facebook page feed. The platform ingests
// photos synchronously, so there is no container polling.
type facebookService struct {
	client *platformClient
}

func NewFacebookService(graphBaseURL string, opts ClientOptions) PlatformAdapter {
	return &facebookService{client: newPlatformClient(models.PlatformFacebook, graphBaseURL, opts)}
}

func (s *facebookService) Platform() string {
	return models.PlatformFacebook
}

func (s *facebookService) Validate(acc *models.SocialAccount) error {
	if acc.PageID == "" || acc.AccessToken == "" {
		return fmt.Errorf("%w: facebook page id or token missing", ErrAccountNotConnected)
	}
	return nil
}

func (s *facebookService) Publish(ctx context.Context, acc *models.SocialAccount, imageURLs []string, caption string) (string, error) {
	if len(imageURLs) == 1 {
		return s.publishSingle(ctx, acc, imageURLs[0], caption)
	}
	return s.publishMultiPhoto(ctx, acc, imageURLs, caption)
}

// publishSingle creates and publishes a photo post in one call.
func (s *facebookService) publishSingle(ctx context.Context, acc *models.SocialAccount, imageURL, caption string) (string, error) {
	var result transfer.GraphIDResponse
	err := s.client.postJSON(ctx, acc.AccessToken, fmt.Sprintf("/%s/photos", acc.PageID), transfer.GraphPhotoRequest{
		URL:     imageURL,
		Caption: caption,
	}, &result)
	if err != nil {
		return "", err
	}

	id := result.PostID
	if id == "" {
		id = result.ID
	}
	if id == "" {
		return "", &PlatformError{Platform: models.PlatformFacebook, StatusCode: 200, Message: "no post id returned"}
	}

	slog.Info("published facebook photo", "page_id", acc.PageID, "post_id", id)
	return id, nil
}

// publishMultiPhoto uploads every image unpublished and attaches them to a
// single feed post.
func (s *facebookService) publishMultiPhoto(ctx context.Context, acc *models.SocialAccount, imageURLs []string, caption string) (string, error) {
	unpublished := false
	attached := make([]transfer.GraphAttachedMedia, 0, len(imageURLs))

	for i, imageURL := range imageURLs {
		var photo transfer.GraphIDResponse
		err := s.client.postJSON(ctx, acc.AccessToken, fmt.Sprintf("/%s/photos", acc.PageID), transfer.GraphPhotoRequest{
			URL:       imageURL,
			Published: &unpublished,
		}, &photo)
		if err != nil {
			return "", fmt.Errorf("upload photo %d: %w", i+1, err)
		}
		if photo.ID == "" {
			return "", &PlatformError{Platform: models.PlatformFacebook, StatusCode: 200, Message: fmt.Sprintf("no photo id returned for image %d", i+1)}
		}
		attached = append(attached, transfer.GraphAttachedMedia{MediaFbID: photo.ID})
	}

	var result transfer.GraphIDResponse
	err := s.client.postJSON(ctx, acc.AccessToken, fmt.Sprintf("/%s/feed", acc.PageID), transfer.GraphFeedRequest{
		Message:       caption,
		AttachedMedia: attached,
	}, &result)
	if err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &PlatformError{Platform: models.PlatformFacebook, StatusCode: 200, Message: "no post id returned"}
	}

	slog.Info("published facebook multi-photo post", "page_id", acc.PageID, "post_id", result.ID, "photos", len(attached))
	return result.ID, nil
}
