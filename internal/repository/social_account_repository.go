package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/postflow/internal/models"
)

type SocialAccountRepository interface {
	GetByOwnerAndPlatform(ctx context.Context, ownerID, platform string) (*models.SocialAccount, error)
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

// GetByOwnerAndPlatform returns nil without error when the owner has not
// connected the platform.
func (r *socialAccountRepository) GetByOwnerAndPlatform(ctx context.Context, ownerID, platform string) (*models.SocialAccount, error) {
	query := `
		SELECT id, owner_id, platform, page_id, access_token,
			COALESCE(business_account_id, ''), created_at, updated_at
		FROM social_accounts
		WHERE owner_id = $1 AND platform = $2`
	row := r.db.QueryRowContext(ctx, query, ownerID, platform)

	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.OwnerID, &sa.Platform, &sa.PageID, &sa.AccessToken,
		&sa.BusinessAccountID, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &sa, nil
}
