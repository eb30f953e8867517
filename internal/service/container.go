package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/metrics"
)

// ContainerState is the platform-side processing state of uploaded media.
type ContainerState string

const (
	ContainerPending  ContainerState = "pending"
	ContainerFinished ContainerState = "finished"
	ContainerError    ContainerState = "error"
)

// statusCheck asks the platform for the current state of one container. The
// detail string carries the platform's own status text for error reporting.
type statusCheck func(ctx context.Context) (state ContainerState, detail string, err error)

// containerPoller waits for asynchronous media ingestion with a fixed interval
// and a hard attempt budget. The wait also ends when ctx is done.
type containerPoller struct {
	platform    string
	interval    time.Duration
	maxAttempts int
}

func newContainerPoller(platform string, interval time.Duration, maxAttempts int) containerPoller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return containerPoller{platform: platform, interval: interval, maxAttempts: maxAttempts}
}

func (p containerPoller) waitUntilReady(ctx context.Context, containerID string, check statusCheck) error {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		state, detail, err := check(ctx)
		if err != nil {
			return fmt.Errorf("check container %s: %w", containerID, err)
		}
		metrics.ContainerPolls.WithLabelValues(p.platform, string(state)).Inc()

		switch state {
		case ContainerFinished:
			return nil
		case ContainerError:
			return fmt.Errorf("%w: container %s: %s", ErrMediaProcessingFailed, containerID, detail)
		}

		if attempt == p.maxAttempts {
			break
		}

		slog.Debug("container not ready", "platform", p.platform, "container_id", containerID, "attempt", attempt)
		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for container %s: %w", containerID, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w: container %s not ready after %d checks", ErrMediaProcessingTimeout, containerID, p.maxAttempts)
}
