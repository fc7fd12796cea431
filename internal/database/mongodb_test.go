package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectMongo_RejectsBadURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), "", time.Second)
	require.Error(t, err)

	_, err = ConnectMongo(context.Background(), "not-a-mongo-uri", time.Second)
	require.ErrorContains(t, err, "mongo connect")
}

func TestConnectWithRetry_GivesUp(t *testing.T) {
	start := time.Now()
	_, err := ConnectWithRetry(context.Background(), "not-a-mongo-uri", time.Second, Retry{Attempts: 3, Backoff: 10 * time.Millisecond})
	require.ErrorContains(t, err, "giving up after 3 attempts")
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestConnectWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ConnectWithRetry(ctx, "not-a-mongo-uri", time.Second, Retry{Attempts: 5, Backoff: time.Hour})
	require.ErrorIs(t, err, context.Canceled)
}
