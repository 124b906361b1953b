package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRunInProgress indicates another rebuild currently holds the lock.
var ErrRunInProgress = errors.New("shared: balance rebuild already in progress")

// RunLockKey builds the redis key guarding full balance rebuilds.
func RunLockKey() string {
	return "veraledger:balance:rebuild:lock"
}

// RunLock serialises balance rebuilds across processes. The pipeline itself
// is single-writer per month, but two overlapping runs would interleave
// their per-month transactions.
type RunLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunLock constructs the lock helper. The TTL bounds how long a crashed
// holder can block later runs.
func NewRunLock(client *redis.Client, ttl time.Duration) *RunLock {
	return &RunLock{client: client, ttl: ttl}
}

// Acquire takes the lock for the given run, failing with ErrRunInProgress
// when it is already held.
func (l *RunLock) Acquire(ctx context.Context, runID string) error {
	if l == nil || l.client == nil {
		return errors.New("shared: run lock not configured")
	}
	ok, err := l.client.SetNX(ctx, RunLockKey(), runID, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("shared: acquire run lock: %w", err)
	}
	if !ok {
		return ErrRunInProgress
	}
	return nil
}

// Release frees the lock if this run still holds it. A lock taken over by a
// newer run (after TTL expiry) is left alone.
func (l *RunLock) Release(ctx context.Context, runID string) error {
	if l == nil || l.client == nil {
		return nil
	}
	holder, err := l.client.Get(ctx, RunLockKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("shared: read run lock: %w", err)
	}
	if holder != runID {
		return nil
	}
	if err := l.client.Del(ctx, RunLockKey()).Err(); err != nil {
		return fmt.Errorf("shared: release run lock: %w", err)
	}
	return nil
}
