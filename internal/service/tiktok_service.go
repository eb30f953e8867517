package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const (
	tiktokPhotoInitPath   = "/v2/post/publish/content/init/"
	tiktokStatusFetchPath = "/v2/post/publish/status/fetch/"

	tiktokStatusComplete = "PUBLISH_COMPLETE"
	tiktokStatusFailed   = "FAILED"

	tiktokMaxTitleRunes = 90
)

// tiktokService posts photo carousels with PULL_FROM_URL and then follows the
// publish_id until TikTok reports a terminal state.
type tiktokService struct {
	client     *platformClient
	poller     containerPoller
	privacy    string
	autoMusic  bool
	coverIndex int
}

func NewTiktokService(cfg config.Platforms, opts ClientOptions) PlatformAdapter {
	return &tiktokService{
		client:     newPlatformClient(models.PlatformTiktok, cfg.TiktokBaseURL, opts),
		poller:     newContainerPoller(models.PlatformTiktok, cfg.PollInterval, cfg.PollMaxAttempts),
		privacy:    cfg.TiktokPrivacy,
		autoMusic:  cfg.TiktokAutoMusic,
		coverIndex: cfg.TiktokPhotoCover,
	}
}

func (s *tiktokService) Platform() string {
	return models.PlatformTiktok
}

func (s *tiktokService) Validate(acc *models.SocialAccount) error {
	if acc.AccessToken == "" {
		return fmt.Errorf("%w: tiktok token missing", ErrAccountNotConnected)
	}
	return nil
}

func (s *tiktokService) Publish(ctx context.Context, acc *models.SocialAccount, imageURLs []string, caption string) (string, error) {
	cover := s.coverIndex
	if cover < 0 || cover >= len(imageURLs) {
		cover = 0
	}

	req := transfer.PhotoUploadRequest{
		PostInfo: transfer.PhotoPostInfo{
			Title:        truncateRunes(caption, tiktokMaxTitleRunes),
			Description:  caption,
			PrivacyLevel: s.privacy,
			AutoAddMusic: s.autoMusic,
		},
		SourceInfo: transfer.PhotoSourceInfo{
			Source:          "PULL_FROM_URL",
			PhotoCoverIndex: cover,
			PhotoImages:     imageURLs,
		},
		PostMode:  "DIRECT_POST",
		MediaType: "PHOTO",
	}

	var result transfer.TikTokUploadResponse
	if err := s.client.postJSON(ctx, acc.AccessToken, tiktokPhotoInitPath, req, &result); err != nil {
		return "", err
	}
	if !result.Error.OK() {
		return "", &PlatformError{Platform: models.PlatformTiktok, StatusCode: 200, Code: result.Error.Code, Message: result.Error.Message}
	}
	publishID := result.Data.PublishID
	if publishID == "" {
		return "", &PlatformError{Platform: models.PlatformTiktok, StatusCode: 200, Message: "no publish_id returned"}
	}

	var postID string
	err := s.poller.waitUntilReady(ctx, publishID, func(ctx context.Context) (ContainerState, string, error) {
		var status transfer.TiktokStatusResponse
		if err := s.client.readJSON(ctx, acc.AccessToken, tiktokStatusFetchPath, transfer.TiktokStatusRequest{PublishID: publishID}, &status); err != nil {
			return "", "", err
		}
		if !status.Error.OK() {
			return "", "", &PlatformError{Platform: models.PlatformTiktok, StatusCode: 200, Code: status.Error.Code, Message: status.Error.Message}
		}
		if ids := status.Data.PubliclyAvailablePostIDs; len(ids) > 0 {
			postID = strconv.FormatInt(ids[0], 10)
		}
		return tiktokPublishState(status.Data.Status), status.Data.FailReason, nil
	})
	if err != nil {
		return "", err
	}

	// Posts under review or with private visibility finish without a public
	// id; the publish_id is then the only stable reference.
	if postID == "" {
		postID = publishID
	}

	slog.Info("published tiktok photo post", "publish_id", publishID, "post_id", postID, "photos", len(imageURLs))
	return postID, nil
}

func tiktokPublishState(status string) ContainerState {
	switch status {
	case tiktokStatusComplete:
		return ContainerFinished
	case tiktokStatusFailed:
		return ContainerError
	default:
		return ContainerPending
	}
}
