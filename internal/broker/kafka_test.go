package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestHandleWithRetryRecovers(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("audit store unavailable")
		}
		return nil
	}

	err := handleWithRetry(context.Background(), handler, kafka.Message{Offset: 7}, 3, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetryGivesUp(t *testing.T) {
	calls := 0
	failure := errors.New("malformed event")
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		return failure
	}

	err := handleWithRetry(context.Background(), handler, kafka.Message{}, 3, time.Millisecond)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		cancel()
		return errors.New("audit store unavailable")
	}

	err := handleWithRetry(ctx, handler, kafka.Message{}, 3, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
