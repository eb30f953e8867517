package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

type PostStatus string

const (
	PostStatusScheduled  PostStatus = "scheduled"
	PostStatusProcessing PostStatus = "processing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
	PostStatusPartial    PostStatus = "partial"
)

// Terminal reports whether no further automatic transition is allowed.
func (s PostStatus) Terminal() bool {
	switch s {
	case PostStatusPublished, PostStatusFailed, PostStatusPartial:
		return true
	}
	return false
}

const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformTiktok    = "tiktok"

	// DefaultCaptionKey holds the caption used by platforms without their own entry.
	DefaultCaptionKey = "default"

	MaxImagesPerPost = 10
)

type ScheduledPost struct {
	ID           string         `db:"id" json:"id"`
	OwnerID      string         `db:"owner_id" json:"owner_id"`
	Platforms    pq.StringArray `db:"platforms" json:"platforms"`
	ScheduledFor time.Time      `db:"scheduled_for" json:"scheduled_for"`
	Status       PostStatus     `db:"status" json:"status"`
	Captions     Captions       `db:"captions" json:"captions"`
	ImageURLs    pq.StringArray `db:"image_urls" json:"image_urls"`
	Error        *string        `db:"error" json:"error,omitempty"`
	PublishedAt  *time.Time     `db:"published_at" json:"published_at,omitempty"`
	Outcomes     Outcomes       `db:"outcomes" json:"outcomes,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// IsDue reports whether the post should be picked up at now.
func (p *ScheduledPost) IsDue(now time.Time) bool {
	return p.Status == PostStatusScheduled && !p.ScheduledFor.After(now)
}

// CaptionFor resolves the caption for a platform: the platform's own entry,
// then the default entry, then the first non-empty caption of the post's
// other platforms in list order.
func (p *ScheduledPost) CaptionFor(platform string) string {
	if c := p.Captions[platform]; strings.TrimSpace(c) != "" {
		return c
	}
	if c := p.Captions[DefaultCaptionKey]; strings.TrimSpace(c) != "" {
		return c
	}
	for _, other := range p.Platforms {
		if other == platform {
			continue
		}
		if c := p.Captions[other]; strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

// Captions maps platform name to caption text. Stored as jsonb.
type Captions map[string]string

func (c Captions) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

func (c *Captions) Scan(src any) error {
	return scanJSON(src, c)
}

// PostResult is the single write performed once a post has been processed.
type PostResult struct {
	Status      PostStatus
	PublishedAt *time.Time
	Error       *string
	Outcomes    Outcomes
}

func scanJSON(src any, dst any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode jsonb column: %w", err)
	}
	return nil
}
