package models

import (
	"time"
)

// SocialAccount is a connected platform account for one owner (shop).
// AccessToken is stored encrypted; services decrypt it before use.
type SocialAccount struct {
	ID                int64     `db:"id" json:"id"`
	OwnerID           string    `db:"owner_id" json:"owner_id"`
	Platform          string    `db:"platform" json:"platform"`
	PageID            string    `db:"page_id" json:"page_id"`
	AccessToken       string    `db:"access_token" json:"-"`
	BusinessAccountID string    `db:"business_account_id" json:"business_account_id"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
