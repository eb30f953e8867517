package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// FailureKind classifies why a platform attempt did not publish.
type FailureKind string

const (
	FailureAccountNotConnected    FailureKind = "account_not_connected"
	FailurePlatformRejected       FailureKind = "platform_rejected"
	FailureMediaProcessingFailed  FailureKind = "media_processing_failed"
	FailureMediaProcessingTimeout FailureKind = "media_processing_timeout"
	FailureProcessorFault         FailureKind = "processor_fault"
)

// Outcome is the normalized result of publishing one post to one platform.
type Outcome struct {
	Platform   string      `json:"platform"`
	Success    bool        `json:"success"`
	ExternalID string      `json:"external_id,omitempty"`
	Kind       FailureKind `json:"kind,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

type Outcomes []Outcome

func (o Outcomes) Value() (driver.Value, error) {
	if o == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

func (o *Outcomes) Scan(src any) error {
	return scanJSON(src, o)
}

// PublishAttempt is one row of publish history, written per platform attempt.
type PublishAttempt struct {
	ID          int64       `db:"id" json:"id"`
	PostID      string      `db:"post_id" json:"post_id"`
	OwnerID     string      `db:"owner_id" json:"owner_id"`
	Platform    string      `db:"platform" json:"platform"`
	Success     bool        `db:"success" json:"success"`
	ExternalID  string      `db:"external_id" json:"external_id"`
	FailureKind FailureKind `db:"failure_kind" json:"failure_kind"`
	Reason      string      `db:"reason" json:"reason"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}
