package transfer

import "github.com/golang-jwt/jwt/v5"

type PostCreation struct {
	Platforms    []string          `json:"platforms"`
	ScheduledFor string            `json:"scheduled_for"`
	Captions     map[string]string `json:"captions"`
	ImageURLs    []string          `json:"image_urls"`
}

type CustomClaims struct {
	OwnerID string `json:"owner_id"`
	jwt.RegisteredClaims
}
