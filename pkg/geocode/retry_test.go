package geocode

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	client := &fakeClient{
		failWhen: func(call int, _ []AddressInput) error {
			if call < 2 {
				return eris.New("transient")
			}
			return nil
		},
	}

	retrying := WithRetry(client, RetryOptions{Attempts: 3, Backoff: time.Millisecond})
	results, err := retrying.BatchGeocode(context.Background(), addrList(2))
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Len(t, client.calls, 3)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	client := &fakeClient{
		failWhen: func(int, []AddressInput) error { return eris.New("down") },
	}

	retrying := WithRetry(client, RetryOptions{Attempts: 2, Backoff: time.Millisecond})
	_, err := retrying.BatchGeocode(context.Background(), addrList(1))
	require.Error(t, err)
	assert.Len(t, client.calls, 2)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	client := &fakeClient{
		failWhen: func(int, []AddressInput) error { return eris.New("down") },
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retrying := WithRetry(client, RetryOptions{Attempts: 5, Backoff: time.Hour})
	_, err := retrying.BatchGeocode(ctx, addrList(1))
	require.Error(t, err)
	assert.Len(t, client.calls, 1, "no further attempts after cancellation")
}

func TestRetrySingleGeocode(t *testing.T) {
	client := &fakeClient{
		failWhen: func(call int, _ []AddressInput) error {
			if call == 0 {
				return eris.New("transient")
			}
			return nil
		},
	}

	retrying := WithRetry(client, RetryOptions{Attempts: 2, Backoff: time.Millisecond})
	result, err := retrying.Geocode(context.Background(), addrList(1)[0])
	require.NoError(t, err)
	assert.True(t, result.Matched())
}
