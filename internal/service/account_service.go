package service

import (
	"context"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/pkg/utils"
)

// AccountService looks up connected accounts and hands them out with the
// access token decrypted.
type AccountService interface {
	GetAccount(ctx context.Context, ownerID, platform string) (*models.SocialAccount, error)
}

type accountService struct {
	repo      repository.SocialAccountRepository
	secretKey string
}

// NewAccountService returns an AccountService. An empty secretKey means tokens
// are stored in plain text.
func NewAccountService(repo repository.SocialAccountRepository, secretKey string) AccountService {
	return &accountService{repo: repo, secretKey: secretKey}
}

func (s *accountService) GetAccount(ctx context.Context, ownerID, platform string) (*models.SocialAccount, error) {
	acc, err := s.repo.GetByOwnerAndPlatform(ctx, ownerID, platform)
	if err != nil {
		return nil, fmt.Errorf("load %s account: %w", platform, err)
	}
	if acc == nil || s.secretKey == "" || acc.AccessToken == "" {
		return acc, nil
	}

	token, err := utils.Decrypt(acc.AccessToken, []byte(s.secretKey))
	if err != nil {
		return nil, fmt.Errorf("decrypt %s token: %w", platform, err)
	}
	acc.AccessToken = token
	return acc, nil
}
