package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
)

// scheduleGrace tolerates clock skew between the client and the server.
const scheduleGrace = time.Minute

type PostService interface {
	CreatePost(ctx context.Context, ownerID string, pc *transfer.PostCreation, files []*multipart.FileHeader) (*models.ScheduledPost, time.Duration, error)
	PostInfo(ctx context.Context, ownerID, postID string) (*models.ScheduledPost, []*models.PublishAttempt, error)
}

type postService struct {
	pr        repository.PostRepository
	pa        repository.PublishAttemptRepository
	media     MediaStore
	platforms []string
	now       func() time.Time
}

// NewPostService returns a PostService that accepts posts for the given
// platforms only.
func NewPostService(pr repository.PostRepository, pa repository.PublishAttemptRepository, media MediaStore, platforms []string) PostService {
	return &postService{
		pr:        pr,
		pa:        pa,
		media:     media,
		platforms: platforms,
		now:       time.Now,
	}
}

func (s *postService) CreatePost(ctx context.Context, ownerID string, pc *transfer.PostCreation, files []*multipart.FileHeader) (*models.ScheduledPost, time.Duration, error) {
	if pc == nil {
		return nil, 0, fmt.Errorf("%w: post creation data is nil", ErrValidation)
	}
	if ownerID == "" {
		return nil, 0, fmt.Errorf("%w: owner is required", ErrValidation)
	}

	platforms, err := s.validatePlatforms(pc.Platforms)
	if err != nil {
		return nil, 0, err
	}
	if err := validateCaptions(pc.Captions, platforms); err != nil {
		return nil, 0, err
	}

	scheduledFor, err := time.Parse(time.RFC3339, pc.ScheduledFor)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid scheduled_for format: %v", ErrValidation, err)
	}
	now := s.now()
	if scheduledFor.Before(now.Add(-scheduleGrace)) {
		return nil, 0, fmt.Errorf("%w: scheduled_for is in the past", ErrValidation)
	}

	total := len(pc.ImageURLs) + len(files)
	if total == 0 {
		return nil, 0, fmt.Errorf("%w: at least one image is required", ErrValidation)
	}
	if total > models.MaxImagesPerPost {
		return nil, 0, fmt.Errorf("%w: %d images exceeds the limit of %d", ErrValidation, total, models.MaxImagesPerPost)
	}
	for _, ref := range pc.ImageURLs {
		if err := validateImageRef(ref); err != nil {
			return nil, 0, err
		}
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, 0, fmt.Errorf("generate post id: %w", err)
	}

	refs := slices.Clone(pc.ImageURLs)
	var uploaded []string
	for i, file := range files {
		ref, err := s.uploadImage(ctx, ownerID, id, i, file)
		if err != nil {
			s.discardUploads(ctx, id, uploaded)
			return nil, 0, err
		}
		uploaded = append(uploaded, ref)
		refs = append(refs, ref)
	}

	post := &models.ScheduledPost{
		ID:           id,
		OwnerID:      ownerID,
		Platforms:    platforms,
		ScheduledFor: scheduledFor.UTC(),
		Status:       models.PostStatusScheduled,
		Captions:     pc.Captions,
		ImageURLs:    refs,
	}
	if err := s.pr.Create(ctx, post); err != nil {
		s.discardUploads(ctx, id, uploaded)
		return nil, 0, err
	}

	delay := scheduledFor.Sub(now)
	if delay < 0 {
		delay = 0
	}

	slog.Info("post scheduled", "post_id", id, "owner_id", ownerID, "platforms", platforms, "images", len(refs), "scheduled_for", post.ScheduledFor)
	return post, delay, nil
}

func (s *postService) PostInfo(ctx context.Context, ownerID, postID string) (*models.ScheduledPost, []*models.PublishAttempt, error) {
	if postID == "" {
		return nil, nil, fmt.Errorf("%w: post id is required", ErrValidation)
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	if post == nil || post.OwnerID != ownerID {
		return nil, nil, ErrPostNotFound
	}

	attempts, err := s.pa.ListByPostID(ctx, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("list publish attempts: %w", err)
	}
	return post, attempts, nil
}

func (s *postService) validatePlatforms(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: at least one platform is required", ErrValidation)
	}

	platforms := make([]string, 0, len(requested))
	for _, p := range requested {
		p = strings.ToLower(strings.TrimSpace(p))
		if !slices.Contains(s.platforms, p) {
			return nil, fmt.Errorf("%w: unsupported platform %q", ErrValidation, p)
		}
		if slices.Contains(platforms, p) {
			return nil, fmt.Errorf("%w: platform %q listed twice", ErrValidation, p)
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

func validateCaptions(captions map[string]string, platforms []string) error {
	for key := range captions {
		if key != models.DefaultCaptionKey && !slices.Contains(platforms, key) {
			return fmt.Errorf("%w: caption for %q which is not a target platform", ErrValidation, key)
		}
	}
	return nil
}

// validateImageRef accepts http(s) and r2:// references whose path ends in a
// known image extension.
func validateImageRef(ref string) error {
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: invalid image url %q", ErrValidation, ref)
	}

	var p string
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("%w: image url %q has no host", ErrValidation, ref)
		}
		p = u.Path
	case "r2":
		p = strings.TrimPrefix(ref, r2Scheme)
	default:
		return fmt.Errorf("%w: image url %q must use http, https or r2", ErrValidation, ref)
	}

	if !isImageExtension(path.Ext(p)) {
		return fmt.Errorf("%w: %q is not an image", ErrValidation, ref)
	}
	return nil
}

func isImageExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "jpeg" {
		ext = "jpg"
	}
	if ext == "" {
		return false
	}
	return filetype.GetType(ext).MIME.Type == "image"
}

// discardUploads removes the objects of a post that was never stored. Keys
// that cannot be deleted are logged for manual cleanup.
func (s *postService) discardUploads(ctx context.Context, postID string, refs []string) {
	ctx = context.WithoutCancel(ctx)
	for _, ref := range refs {
		if err := s.media.Delete(ctx, ref); err != nil {
			slog.Error("failed to delete orphaned upload", "post_id", postID, "ref", ref, "error", err)
		}
	}
}

func (s *postService) uploadImage(ctx context.Context, ownerID, postID string, index int, file *multipart.FileHeader) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("error reading file content: %w", err)
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown {
		return "", fmt.Errorf("%w: file %q has an unrecognized type", ErrValidation, file.Filename)
	}
	if kind.MIME.Type != "image" {
		return "", fmt.Errorf("%w: file %q is %s, not an image", ErrValidation, file.Filename, kind.MIME.Value)
	}

	key := fmt.Sprintf("posts/%s/%s/%02d.%s", ownerID, postID, index, kind.Extension)
	ref, err := s.media.Upload(ctx, key, data, kind.MIME.Value)
	if err != nil {
		return "", fmt.Errorf("error uploading file: %w", err)
	}
	return ref, nil
}
