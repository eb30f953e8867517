package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/models"
)

func TestWaitUntilReady(t *testing.T) {
	sequence := func(states ...ContainerState) (statusCheck, *int) {
		calls := 0
		return func(context.Context) (ContainerState, string, error) {
			s := states[min(calls, len(states)-1)]
			calls++
			return s, "detail", nil
		}, &calls
	}

	t.Run("finished immediately", func(t *testing.T) {
		check, calls := sequence(ContainerFinished)
		err := newContainerPoller("instagram", time.Millisecond, 5).waitUntilReady(context.Background(), "c1", check)
		require.NoError(t, err)
		assert.Equal(t, 1, *calls)
	})

	t.Run("finished after pending", func(t *testing.T) {
		check, calls := sequence(ContainerPending, ContainerPending, ContainerFinished)
		err := newContainerPoller("instagram", time.Millisecond, 5).waitUntilReady(context.Background(), "c1", check)
		require.NoError(t, err)
		assert.Equal(t, 3, *calls)
	})

	t.Run("error state", func(t *testing.T) {
		check, _ := sequence(ContainerPending, ContainerError)
		err := newContainerPoller("instagram", time.Millisecond, 5).waitUntilReady(context.Background(), "c1", check)
		assert.ErrorIs(t, err, ErrMediaProcessingFailed)
		assert.Equal(t, models.FailureMediaProcessingFailed, classify(err))
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		check, calls := sequence(ContainerPending)
		err := newContainerPoller("instagram", time.Millisecond, 4).waitUntilReady(context.Background(), "c1", check)
		assert.ErrorIs(t, err, ErrMediaProcessingTimeout)
		assert.Equal(t, 4, *calls)
	})

	t.Run("check fails", func(t *testing.T) {
		boom := errors.New("boom")
		err := newContainerPoller("instagram", time.Millisecond, 4).waitUntilReady(context.Background(), "c1",
			func(context.Context) (ContainerState, string, error) { return "", "", boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		check := func(context.Context) (ContainerState, string, error) {
			cancel()
			return ContainerPending, "", nil
		}
		err := newContainerPoller("instagram", time.Hour, 10).waitUntilReady(ctx, "c1", check)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		kind models.FailureKind
	}{
		{err: ErrAccountNotConnected, kind: models.FailureAccountNotConnected},
		{err: &PlatformError{Platform: "facebook", StatusCode: 400}, kind: models.FailurePlatformRejected},
		{err: ErrMediaProcessingFailed, kind: models.FailureMediaProcessingFailed},
		{err: ErrMediaProcessingTimeout, kind: models.FailureMediaProcessingTimeout},
		{err: ErrProcessorFault, kind: models.FailureProcessorFault},
		{err: errors.New("dial tcp: connection refused"), kind: models.FailureProcessorFault},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, classify(tt.err), tt.err.Error())
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(&PlatformError{StatusCode: 400}))
	assert.True(t, isTransient(&PlatformError{StatusCode: 429}))
	assert.True(t, isTransient(&PlatformError{StatusCode: 503}))
	assert.True(t, isTransient(errors.New("connection reset by peer")))
}
