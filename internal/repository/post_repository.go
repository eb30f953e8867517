package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/postflow/internal/models"
)

// ErrPostNotProcessing is returned when a result is written for a post that
// is not currently claimed.
var ErrPostNotProcessing = errors.New("post is not in processing state")

const postColumns = `id, owner_id, platforms, scheduled_for, status, captions, image_urls,
	error, published_at, outcomes, created_at, updated_at`

type PostRepository interface {
	Create(ctx context.Context, post *models.ScheduledPost) error
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	Claim(ctx context.Context, id string) (bool, error)
	Complete(ctx context.Context, id string, result *models.PostResult) error
	FailStale(ctx context.Context, olderThan time.Duration, reason string) (int64, error)
}

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.ScheduledPost) error {
	query := `
		INSERT INTO scheduled_posts (id, owner_id, platforms, scheduled_for, status, captions, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		post.ID,
		post.OwnerID,
		post.Platforms,
		post.ScheduledFor,
		post.Status,
		post.Captions,
		post.ImageURLs,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`

	var post models.ScheduledPost
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return &post, nil
}

// ListDue returns at most limit posts that are scheduled and whose time has come.
func (r *postRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + `
		FROM scheduled_posts
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for
		LIMIT $3`

	var posts []*models.ScheduledPost
	if err := r.db.SelectContext(ctx, &posts, query, models.PostStatusScheduled, now, limit); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	return posts, nil
}

// Claim atomically moves a post from scheduled to processing. It returns false
// when another run already claimed the post.
func (r *postRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, id, models.PostStatusProcessing, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, fmt.Errorf("claim post %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get affected rows: %w", err)
	}
	return affected == 1, nil
}

func (r *postRepository) Complete(ctx context.Context, id string, res *models.PostResult) error {
	query := `
		UPDATE scheduled_posts
		SET status = $2,
		    published_at = $3,
		    error = $4,
		    outcomes = $5,
		    updated_at = NOW()
		WHERE id = $1 AND status = $6`

	result, err := r.db.ExecContext(ctx, query, id, res.Status, res.PublishedAt, res.Error, res.Outcomes, models.PostStatusProcessing)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("complete post %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrPostNotProcessing
	}
	return nil
}

// FailStale fails posts whose claim is older than olderThan. A run that died
// mid-publish may have created external posts, so they are never re-queued.
func (r *postRepository) FailStale(ctx context.Context, olderThan time.Duration, reason string) (int64, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, error = $2, updated_at = NOW()
		WHERE status = $3
		  AND updated_at < NOW() - make_interval(secs => $4)`

	result, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, reason, models.PostStatusProcessing, olderThan.Seconds())
	if err != nil {
		slog.Info(err.Error())
		return 0, fmt.Errorf("fail stale posts: %w", err)
	}
	return result.RowsAffected()
}
