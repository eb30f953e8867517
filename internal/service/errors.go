package service

import (
	"errors"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
)

var (
	ErrAccountNotConnected    = errors.New("account not connected")
	ErrPlatformRejected       = errors.New("platform rejected request")
	ErrMediaProcessingFailed  = errors.New("media processing failed")
	ErrMediaProcessingTimeout = errors.New("media processing timed out")
	ErrProcessorFault         = errors.New("processor fault")

	ErrAlreadyClaimed = errors.New("post already claimed by another run")
	ErrValidation     = errors.New("invalid post")
	ErrPostNotFound   = errors.New("post not found")
)

// PlatformError is an error payload returned by a platform API.
type PlatformError struct {
	Platform   string
	StatusCode int
	Code       string
	Message    string
}

func (e *PlatformError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rejected request (status %d, code %s): %s", e.Platform, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s rejected request (status %d): %s", e.Platform, e.StatusCode, e.Message)
}

func (e *PlatformError) Unwrap() error {
	return ErrPlatformRejected
}

// classify maps an adapter error onto the failure taxonomy. Anything
// unrecognized is a processor fault.
func classify(err error) models.FailureKind {
	switch {
	case errors.Is(err, ErrAccountNotConnected):
		return models.FailureAccountNotConnected
	case errors.Is(err, ErrPlatformRejected):
		return models.FailurePlatformRejected
	case errors.Is(err, ErrMediaProcessingFailed):
		return models.FailureMediaProcessingFailed
	case errors.Is(err, ErrMediaProcessingTimeout):
		return models.FailureMediaProcessingTimeout
	default:
		return models.FailureProcessorFault
	}
}
