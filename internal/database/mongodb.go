// Package database opens the MongoDB connection backing documents, comments and users.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/pdfmarker/pdfmarker/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens a connection and pings it. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo connect: empty uri")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Retry controls ConnectWithRetry. Backoff doubles after every failed attempt.
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

// ConnectWithRetry tolerates a database that is still starting (compose startup races).
// It stops early when ctx is cancelled.
func ConnectWithRetry(ctx context.Context, uri string, timeout time.Duration, r Retry) (*mongo.Client, error) {
	if r.Attempts < 1 {
		r.Attempts = 1
	}
	backoff := r.Backoff
	var err error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		var client *mongo.Client
		if client, err = ConnectMongo(ctx, uri, timeout); err == nil {
			return client, nil
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, r.Attempts, err)
		if attempt == r.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("mongo: giving up after %d attempts: %w", r.Attempts, err)
}
